package mosaic

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
)

// maxSamplesPerAxis bounds the sparse sample grid to 6x6 per block.
const maxSamplesPerAxis = 6

// SampleBlock returns the representative color of rect in buf.
//
// A sparse grid of at most 36 pixels is read from rect with a stride of
// ceil(max(w,h)/6). The mean of the samples is the soft estimate and the
// sample with median luma the crisp one; the result is
//
//	mean*(1-sharpness) + median*sharpness
//
// rect is clipped to the buffer. An empty rectangle yields opaque black.
func SampleBlock(buf *imaging.PixelBuffer, rect image.Rectangle, sharpness float64) imaging.Color {
	mean, median, ok := sampleStats(buf, rect)
	if !ok {
		return imaging.Color{A: 255}
	}
	return blend(mean, median, clamp01(sharpness))
}

// sampleStats returns the mean and luma-median of the sparse samples of rect.
func sampleStats(buf *imaging.PixelBuffer, rect image.Rectangle) (mean, median imaging.Color, ok bool) {
	if !buf.Valid() {
		return imaging.Color{}, imaging.Color{}, false
	}
	rect = rect.Intersect(image.Rect(0, 0, buf.Width, buf.Height))
	if rect.Empty() {
		return imaging.Color{}, imaging.Color{}, false
	}

	size := rect.Dx()
	if rect.Dy() > size {
		size = rect.Dy()
	}
	stride := (size + maxSamplesPerAxis - 1) / maxSamplesPerAxis
	if stride < 1 {
		stride = 1
	}

	samples := make([]imaging.Color, 0, maxSamplesPerAxis*maxSamplesPerAxis)
	var sum [4]int
	for y := rect.Min.Y; y < rect.Max.Y; y += stride {
		for x := rect.Min.X; x < rect.Max.X; x += stride {
			c := buf.At(x, y)
			samples = append(samples, c)
			sum[0] += int(c.R)
			sum[1] += int(c.G)
			sum[2] += int(c.B)
			sum[3] += int(c.A)
		}
	}

	n := len(samples)
	mean = imaging.Color{
		R: roundChannel(float64(sum[0]) / float64(n)),
		G: roundChannel(float64(sum[1]) / float64(n)),
		B: roundChannel(float64(sum[2]) / float64(n)),
		A: roundChannel(float64(sum[3]) / float64(n)),
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Luma() < samples[j].Luma()
	})
	median = samples[n/2]

	return mean, median, true
}

// blend mixes the soft and crisp estimates channel by channel.
func blend(mean, median imaging.Color, weight float64) imaging.Color {
	mix := func(a, b uint8) uint8 {
		return roundChannel(float64(a)*(1-weight) + float64(b)*weight)
	}
	return imaging.Color{
		R: mix(mean.R, median.R),
		G: mix(mean.G, median.G),
		B: mix(mean.B, median.B),
		A: mix(mean.A, median.A),
	}
}

// blockEdge is the pixel coordinate where block i of n starts along an axis
// of the given length. Block i ends where block i+1 starts, so consecutive
// blocks share one rounding and never leave a gap.
func blockEdge(i, n, length int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(float64(i) * float64(length) / float64(n)))
}

func roundChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
