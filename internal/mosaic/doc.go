// Package mosaic turns a pixel buffer into an edge-aware pixel-art mosaic.
//
// Pixelate is the whole pipeline: it builds an edge map, fits a deformable
// grid to it, and paints one flat color per block. PixelateBatch runs many
// independent images in parallel.
//
// # Rendering
//
// Every mode paints axis-aligned rectangles, and the color of a block is
// always sampled from exactly the rectangle that gets painted. This keeps
// block interiors flat and seams sharp. The modes differ only in where the
// rectangles go. In every mode a block touching an edge blends toward its
// median color, scaled by local edge strength; other blocks take the mean.
//
//   - RenderBlocks: a fixed uniform partition. The optimized grid is
//     reported in the Result but does not move blocks.
//   - RenderAdaptive: block boundaries follow the optimized grid lines.
//   - RenderCurved: as RenderAdaptive, with boundaries averaged over the
//     curved cell outlines.
//
// # Determinism
//
// Given the same source and options, Pixelate returns byte-identical output.
// The only randomized component is the optional k-means palette source.
package mosaic
