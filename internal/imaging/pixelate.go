package imaging

import (
	"github.com/disintegration/imaging"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// PixelateBlocks is the content-blind fixed-grid pixelation.
//
// The buffer is box-filtered down to ceil(w/size) x ceil(h/size) pixels and
// scaled back up with nearest-neighbor sampling, so the output has the same
// dimensions as buf. It knows nothing about edges; the adaptive pipeline in
// package mosaic is the edge-aware counterpart.
func PixelateBlocks(buf *PixelBuffer, blockSize int) *PixelBuffer {
	if !buf.Valid() || buf.Width == 0 || buf.Height == 0 {
		logging.Logger().Warn("naive pixelation skipped: empty or invalid buffer")
		if buf == nil {
			return NewPixelBuffer(0, 0)
		}
		return buf.Clone()
	}
	if blockSize < 1 {
		logging.Logger().Warn("block size below 1, using 1", "block_size", blockSize)
		blockSize = 1
	}

	cols := clamp((buf.Width+blockSize-1)/blockSize, 1, buf.Width)
	rows := clamp((buf.Height+blockSize-1)/blockSize, 1, buf.Height)

	small := imaging.Resize(buf.ToImage(), cols, rows, imaging.Box)
	full := imaging.Resize(small, buf.Width, buf.Height, imaging.NearestNeighbor)
	return FromImage(full)
}
