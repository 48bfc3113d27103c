package imaging

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// ThresholdMode selects how suppressed gradient magnitudes are turned into
// the final edge map.
type ThresholdMode int

const (
	// ThresholdPercentile zeroes every magnitude below a single percentile
	// cutoff of the non-zero magnitude distribution.
	ThresholdPercentile ThresholdMode = iota

	// ThresholdHysteresis keeps magnitudes above a high percentile, plus
	// magnitudes above a low percentile that are 8-connected to a kept pixel.
	ThresholdHysteresis
)

// String returns the name used by the MCP tools.
func (m ThresholdMode) String() string {
	switch m {
	case ThresholdHysteresis:
		return "hysteresis"
	default:
		return "percentile"
	}
}

// ParseThresholdMode maps a tool argument to a ThresholdMode.
// Unknown or empty names select ThresholdPercentile.
func ParseThresholdMode(name string) ThresholdMode {
	if name == "hysteresis" {
		return ThresholdHysteresis
	}
	return ThresholdPercentile
}

// EdgeOptions configures BuildEdgeMap.
type EdgeOptions struct {
	// Sharpness in [0,1]. Higher values discard a larger fraction of the
	// detected edges, keeping only the strongest.
	Sharpness float64

	// Mode selects percentile or hysteresis thresholding.
	Mode ThresholdMode

	// Binarize sets every surviving pixel to 1.0. When false the normalized
	// magnitude is kept.
	Binarize bool

	// BlurRadius applies a Gaussian pre-blur of this radius before the
	// gradient pass. Zero disables it.
	BlurRadius float64
}

// DefaultEdgeOptions returns the binary percentile configuration.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{
		Sharpness: 0.5,
		Mode:      ThresholdPercentile,
		Binarize:  true,
	}
}

// EdgeMap is a per-pixel edge strength field in [0,1].
//
// A value of 0 means no edge; anything above 0 means an edge is present.
// The map is read-only once BuildEdgeMap returns it.
type EdgeMap struct {
	Width  int
	Height int
	Values []float64
}

// NewEdgeMap allocates an all-zero map.
func NewEdgeMap(width, height int) *EdgeMap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &EdgeMap{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

// At returns the strength at (x, y), or 0 outside the map.
func (m *EdgeMap) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Values[y*m.Width+x]
}

// IsEdge reports whether (x, y) is edge-positive.
func (m *EdgeMap) IsEdge(x, y int) bool {
	return m.At(x, y) > 0
}

// EdgeCount returns the number of edge-positive pixels.
func (m *EdgeMap) EdgeCount() int {
	n := 0
	for _, v := range m.Values {
		if v > 0 {
			n++
		}
	}
	return n
}

// Matches reports whether the map covers a width x height image.
func (m *EdgeMap) Matches(width, height int) bool {
	return m != nil && m.Width == width && m.Height == height && len(m.Values) == width*height
}

// ToImage renders the map as grayscale, 255 for full strength.
func (m *EdgeMap) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Values {
		img.Pix[i] = uint8(math.Round(clampFloat(v, 0, 1) * 255))
	}
	return img
}

// BuildEdgeMap computes the edge strength field of buf.
//
// # Algorithm
//
//  1. Luminance with ITU-R BT.601 weights, normalized to [0,1]
//  2. Sobel gradients; pixels without a full 3x3 neighborhood stay at zero
//  3. Magnitude = sqrt(Gx² + Gy²); direction = atan2(Gy, Gx) rotated by 90°,
//     i.e. the orientation of the edge itself
//  4. Magnitudes normalized by the observed maximum
//  5. Non-maximum suppression across the edge orientation, quantized to
//     0°, 45°, 90° and 135°
//  6. Thresholding against percentiles of the non-zero magnitudes, so a given
//     sharpness behaves the same on low- and high-contrast images
//
// An image without any intensity change yields an all-zero map.
func BuildEdgeMap(buf *PixelBuffer, opts EdgeOptions) *EdgeMap {
	if buf == nil {
		logging.Logger().Warn("edge map requested for nil buffer")
		return NewEdgeMap(0, 0)
	}
	if !buf.Valid() {
		logging.Logger().Warn("edge map input has mismatched pixel data",
			"width", buf.Width, "height", buf.Height, "len", len(buf.Pix))
		return NewEdgeMap(buf.Width, buf.Height)
	}

	width, height := buf.Width, buf.Height
	result := NewEdgeMap(width, height)
	if width < 3 || height < 3 {
		return result
	}

	src := buf
	if opts.BlurRadius > 0 {
		src = FromImage(blur.Gaussian(buf.ToImage(), opts.BlurRadius))
	}

	luma := make([]float64, width*height)
	for i := range luma {
		p := src.Pix[i*4 : i*4+3]
		luma[i] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255.0
	}

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	maxMag := 0.0

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			tl := luma[(y-1)*width+x-1]
			tc := luma[(y-1)*width+x]
			tr := luma[(y-1)*width+x+1]
			ml := luma[y*width+x-1]
			mr := luma[y*width+x+1]
			bl := luma[(y+1)*width+x-1]
			bc := luma[(y+1)*width+x]
			br := luma[(y+1)*width+x+1]

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)

			i := y*width + x
			magnitude[i] = math.Sqrt(gx*gx + gy*gy)
			direction[i] = math.Atan2(gy, gx) + math.Pi/2
			if magnitude[i] > maxMag {
				maxMag = magnitude[i]
			}
		}
	}

	if maxMag == 0 {
		return result
	}
	for i := range magnitude {
		magnitude[i] /= maxMag
	}

	suppressed := suppressNonMaxima(magnitude, direction, width, height)

	sharpness := opts.Sharpness
	if math.IsNaN(sharpness) {
		logging.Logger().Warn("edge sharpness is NaN, using 0.5")
		sharpness = 0.5
	}
	sharpness = clampFloat(sharpness, 0, 1)

	switch opts.Mode {
	case ThresholdHysteresis:
		thresholdHysteresis(suppressed, result, sharpness, opts.Binarize)
	default:
		thresholdPercentile(suppressed, result, sharpness, opts.Binarize)
	}

	logging.Logger().Debug("edge map built",
		"width", width, "height", height,
		"mode", opts.Mode.String(), "edges", result.EdgeCount())

	return result
}

// suppressNonMaxima keeps a magnitude only when it is at least as large as
// both neighbors lying across the edge. direction holds edge orientation, so
// the comparison axis is rotated back by 90°.
func suppressNonMaxima(magnitude, direction []float64, width, height int) []float64 {
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag == 0 {
				continue
			}

			deg := math.Mod((direction[i]-math.Pi/2)*180/math.Pi, 180)
			if deg < 0 {
				deg += 180
			}

			var n1, n2 float64
			switch {
			case deg < 22.5 || deg >= 157.5:
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			case deg < 67.5:
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			case deg < 112.5:
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			default:
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}
	return suppressed
}

// discardFraction maps sharpness to the fraction of non-zero magnitudes that
// fall below the cutoff. The mapping is strictly increasing.
func discardFraction(sharpness float64) float64 {
	return 0.1 + 0.8*sharpness
}

// nonZeroSorted returns the non-zero values in ascending order.
func nonZeroSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values)/8)
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func thresholdPercentile(suppressed []float64, dst *EdgeMap, sharpness float64, binarize bool) {
	dist := nonZeroSorted(suppressed)
	if len(dist) == 0 {
		return
	}
	cutoff := stat.Quantile(discardFraction(sharpness), stat.Empirical, dist, nil)

	for i, v := range suppressed {
		if v > 0 && v >= cutoff {
			if binarize {
				dst.Values[i] = 1
			} else {
				dst.Values[i] = v
			}
		}
	}
}

// thresholdHysteresis links weak pixels to strong ones by flooding outward
// from every strong pixel through 8-connected pixels above the low cutoff.
func thresholdHysteresis(suppressed []float64, dst *EdgeMap, sharpness float64, binarize bool) {
	dist := nonZeroSorted(suppressed)
	if len(dist) == 0 {
		return
	}
	highP := discardFraction(sharpness)
	high := stat.Quantile(highP, stat.Empirical, dist, nil)
	low := stat.Quantile(highP/2, stat.Empirical, dist, nil)

	width, height := dst.Width, dst.Height
	kept := make([]bool, len(suppressed))
	stack := make([]int, 0, 64)

	for i, v := range suppressed {
		if v > 0 && v >= high {
			kept[i] = true
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				nx, ny := x+kx, y+ky
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := ny*width + nx
				if kept[j] || suppressed[j] <= 0 || suppressed[j] < low {
					continue
				}
				kept[j] = true
				stack = append(stack, j)
			}
		}
	}

	for i, k := range kept {
		if !k {
			continue
		}
		if binarize {
			dst.Values[i] = 1
		} else {
			dst.Values[i] = suppressed[i]
		}
	}
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// clampFloat constrains v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
