// Package imaging holds the pixel-level building blocks of the mosaic engine:
// the RGBA pixel buffer, source image loading, edge detection and the naive
// fixed-grid pixelation.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X growing
// rightward and Y growing downward. Rectangles are half-open: Min is
// inclusive, Max is exclusive.
//
// # Buffers
//
// PixelBuffer stores straight-alpha RGBA bytes in row-major order. Stages
// never write into the buffer they receive; each returns a freshly allocated
// one. A buffer whose pixel slice does not match its declared size is
// reported by Valid and treated as empty input rather than a panic.
//
// # Edge Detection
//
// BuildEdgeMap runs Sobel gradients, non-maximum suppression and
// percentile or hysteresis thresholding on the CPU. DetectEdges fronts it
// with an optional accelerated EdgeBackend and falls back to the CPU result
// whenever the backend is missing, fails, or returns an unusable map.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// apart from the backend registry, which is guarded by a mutex.
package imaging
