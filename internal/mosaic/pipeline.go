package mosaic

import (
	"github.com/ironsheep/pixel-mosaic-mcp/internal/grid"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/palette"
)

// Options configures Pixelate.
type Options struct {
	// BlockSize is the target block edge length in pixels.
	BlockSize int

	// Sharpness in [0,1] drives edge detection, corner snapping and the
	// mean/median color blend. It overrides the Sharpness fields of Edge and
	// Optimizer.
	Sharpness float64

	// Mode selects the block layout.
	Mode RenderMode

	Edge      imaging.EdgeOptions
	Optimizer grid.Options

	// MaxColors reduces the output palette when > 0.
	MaxColors int
	Palette   palette.Options
}

// DefaultOptions returns the settings used by the image_pixelate tool.
func DefaultOptions() Options {
	return Options{
		BlockSize: 8,
		Sharpness: 0.5,
		Mode:      RenderBlocks,
		Edge:      imaging.DefaultEdgeOptions(),
		Optimizer: grid.DefaultOptions(),
		Palette:   palette.DefaultOptions(),
	}
}

// Result is the output of one pipeline run.
type Result struct {
	Buffer *imaging.PixelBuffer
	Edges  *imaging.EdgeMap
	Grid   *grid.Grid

	// Accelerated is true when a registered edge backend produced Edges.
	Accelerated bool

	Stats grid.Stats
}

// Pixelate runs the full adaptive pipeline on src:
//
//  1. edge map (registered backend or CPU)
//  2. uniform lattice of BlockSize cells
//  3. corner optimization against the edge map
//  4. block rendering in the selected Mode
//  5. optional palette reduction
//
// The optimizer always runs so that Result.Grid reflects the image even in
// RenderBlocks mode, where it does not affect the output pixels.
//
// src is never modified. The same src and opts always produce the same
// Buffer.
func Pixelate(src *imaging.PixelBuffer, opts Options) *Result {
	log := logging.Logger()

	if opts.BlockSize < 1 {
		log.Warn("block size below 1, using 1", "block_size", opts.BlockSize)
		opts.BlockSize = 1
	}
	sharpness := clamp01(opts.Sharpness)

	if src == nil || !src.Valid() {
		log.Warn("pixelate called with invalid buffer")
		return &Result{
			Buffer: imaging.NewPixelBuffer(0, 0),
			Edges:  imaging.NewEdgeMap(0, 0),
			Grid:   grid.New(0, 0, opts.BlockSize),
		}
	}

	edgeOpts := opts.Edge
	edgeOpts.Sharpness = sharpness
	edges, accelerated := imaging.DetectEdges(src, edgeOpts)

	g := grid.New(src.Width, src.Height, opts.BlockSize)

	gridOpts := opts.Optimizer
	gridOpts.Sharpness = sharpness
	if opts.Mode == RenderCurved {
		gridOpts.UseCurvedEdges = true
	}
	stats := grid.Optimize(g, edges, gridOpts)

	var out *imaging.PixelBuffer
	switch opts.Mode {
	case RenderAdaptive:
		out = RenderGrid(src, g, edges, sharpness)
	case RenderCurved:
		out = RenderCurvedGrid(src, g, edges, gridOpts.Curve(), sharpness)
	default:
		out = RenderEdgeGated(src, edges, opts.BlockSize, sharpness)
	}

	if opts.MaxColors > 0 {
		out = palette.Quantize(out, opts.MaxColors, opts.Palette)
	}

	log.Debug("pixelate complete",
		"width", src.Width,
		"height", src.Height,
		"mode", opts.Mode.String(),
		"edges", edges.EdgeCount(),
		"accelerated", accelerated)

	return &Result{
		Buffer:      out,
		Edges:       edges,
		Grid:        g,
		Accelerated: accelerated,
		Stats:       stats,
	}
}
