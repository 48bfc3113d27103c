// Package palette reduces the number of distinct colors in a pixel buffer.
//
// Quantize picks a palette of at most maxColors entries and snaps every
// pixel to its nearest entry. Palette entries are chosen for diversity: the
// most common candidate seeds the palette and each further entry is the
// candidate farthest from everything already chosen. Where the candidates
// come from is configurable (see Method).
package palette

import (
	"math"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// Method selects the candidate source for palette selection.
type Method int

const (
	// MethodDiverse ranks sampled pixel colors by frequency. Deterministic.
	MethodDiverse Method = iota

	// MethodKMeans uses k-means cluster centers weighted by population.
	// Cluster seeding is randomized, so repeated runs may differ.
	MethodKMeans

	// MethodDominant uses the weighted dominant colors of the image.
	MethodDominant
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	case MethodDominant:
		return "dominant"
	default:
		return "diverse"
	}
}

// ParseMethod maps a method name to a Method. Unknown names return
// MethodDiverse.
func ParseMethod(name string) Method {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kmeans", "k-means":
		return MethodKMeans
	case "dominant", "dominantcolor":
		return MethodDominant
	default:
		return MethodDiverse
	}
}

// Distance selects the color metric used for selection and remapping.
type Distance int

const (
	// DistanceRGB is Euclidean distance on 8-bit RGB.
	DistanceRGB Distance = iota

	// DistanceLab is Euclidean distance in CIE L*a*b*.
	DistanceLab
)

func (d Distance) String() string {
	if d == DistanceLab {
		return "lab"
	}
	return "rgb"
}

// ParseDistance maps "rgb" or "lab" to a Distance. Unknown names return
// DistanceRGB.
func ParseDistance(name string) Distance {
	if strings.EqualFold(strings.TrimSpace(name), "lab") {
		return DistanceLab
	}
	return DistanceRGB
}

// Options configures Quantize.
type Options struct {
	Method   Method
	Distance Distance
}

// DefaultOptions returns frequency candidates with RGB distance.
func DefaultOptions() Options {
	return Options{Method: MethodDiverse, Distance: DistanceRGB}
}

// candidate is a palette candidate with its weight (sample count, cluster
// population or dominance).
type candidate struct {
	color  imaging.Color
	weight float64
}

// CountColors returns the number of distinct RGBA values in buf.
func CountColors(buf *imaging.PixelBuffer) int {
	if !buf.Valid() {
		return 0
	}
	seen := make(map[imaging.Color]struct{})
	for i := 0; i+3 < len(buf.Pix); i += 4 {
		seen[imaging.Color{R: buf.Pix[i], G: buf.Pix[i+1], B: buf.Pix[i+2], A: buf.Pix[i+3]}] = struct{}{}
	}
	return len(seen)
}

// Quantize returns a copy of buf using at most maxColors distinct colors.
//
// A buffer that already has maxColors or fewer colors is returned as an
// unchanged copy. maxColors below 1 is treated as 1. buf is never modified.
func Quantize(buf *imaging.PixelBuffer, maxColors int, opts Options) *imaging.PixelBuffer {
	log := logging.Logger()

	if buf == nil || !buf.Valid() {
		log.Warn("quantize called with invalid buffer")
		return imaging.NewPixelBuffer(0, 0)
	}
	if maxColors < 1 {
		log.Warn("max colors below 1, using 1", "max_colors", maxColors)
		maxColors = 1
	}
	if n := CountColors(buf); n <= maxColors {
		log.Debug("palette already small enough", "colors", n, "max_colors", maxColors)
		return buf.Clone()
	}

	pal := Extract(buf, maxColors, opts)
	if len(pal) == 0 {
		log.Warn("no palette candidates found, returning source")
		return buf.Clone()
	}
	return Remap(buf, pal, opts.Distance)
}

// Extract chooses up to maxColors palette entries for buf without remapping.
func Extract(buf *imaging.PixelBuffer, maxColors int, opts Options) []imaging.Color {
	if buf == nil || !buf.Valid() || maxColors < 1 {
		return nil
	}

	var cands []candidate
	switch opts.Method {
	case MethodKMeans:
		cands = kmeansCandidates(buf, maxColors)
	case MethodDominant:
		cands = dominantCandidates(buf, maxColors)
	}
	if len(cands) == 0 {
		if opts.Method != MethodDiverse {
			logging.Logger().Warn("candidate source returned nothing, using frequency ranking",
				"method", opts.Method.String())
		}
		cands = frequencyCandidates(buf)
	}
	return selectDiverse(cands, maxColors, opts.Distance)
}

// sampleStep is the sampling stride for a w x h image, proportional to
// sqrt(w*h) so large images are read at roughly constant cost.
func sampleStep(w, h int) int {
	step := int(math.Sqrt(float64(w)*float64(h)) / 128)
	if step < 1 {
		step = 1
	}
	return step
}

// frequencyCandidates samples buf and ranks colors by count. Ties are
// broken by packed RGBA value so the order is deterministic.
func frequencyCandidates(buf *imaging.PixelBuffer) []candidate {
	step := sampleStep(buf.Width, buf.Height)
	counts := make(map[imaging.Color]int)
	for y := 0; y < buf.Height; y += step {
		for x := 0; x < buf.Width; x += step {
			counts[buf.At(x, y)]++
		}
	}

	cands := make([]candidate, 0, len(counts))
	for c, n := range counts {
		cands = append(cands, candidate{color: c, weight: float64(n)})
	}
	sortCandidates(cands)
	return cands
}

func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		return pack(cands[i].color) < pack(cands[j].color)
	})
}

func pack(c imaging.Color) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// selectDiverse seeds the palette with the heaviest candidate, then
// repeatedly adds the candidate whose distance to its nearest chosen entry
// is largest. cands must already be ranked; earlier candidates win ties.
func selectDiverse(cands []candidate, k int, dist Distance) []imaging.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	if k > len(cands) {
		k = len(cands)
	}

	metric := newMetric(dist)
	chosen := make([]imaging.Color, 0, k)
	chosen = append(chosen, cands[0].color)

	// nearest[i] is the distance from candidate i to the closest chosen entry.
	nearest := make([]float64, len(cands))
	used := make([]bool, len(cands))
	used[0] = true
	for i := range cands {
		nearest[i] = metric.distance(cands[i].color, cands[0].color)
	}

	for len(chosen) < k {
		best := -1
		bestDist := -1.0
		for i := range cands {
			if used[i] {
				continue
			}
			if nearest[i] > bestDist {
				best, bestDist = i, nearest[i]
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		chosen = append(chosen, cands[best].color)
		for i := range cands {
			if d := metric.distance(cands[i].color, cands[best].color); d < nearest[i] {
				nearest[i] = d
			}
		}
	}
	return chosen
}

// Remap snaps every pixel of buf to its nearest palette entry. Results are
// memoized per source color.
func Remap(buf *imaging.PixelBuffer, pal []imaging.Color, dist Distance) *imaging.PixelBuffer {
	if buf == nil || !buf.Valid() {
		return imaging.NewPixelBuffer(0, 0)
	}
	if len(pal) == 0 {
		return buf.Clone()
	}

	metric := newMetric(dist)
	memo := make(map[imaging.Color]imaging.Color)
	out := imaging.NewPixelBuffer(buf.Width, buf.Height)

	for i := 0; i+3 < len(buf.Pix); i += 4 {
		src := imaging.Color{R: buf.Pix[i], G: buf.Pix[i+1], B: buf.Pix[i+2], A: buf.Pix[i+3]}
		dst, ok := memo[src]
		if !ok {
			dst = pal[0]
			bestD := metric.distance(src, pal[0])
			for _, p := range pal[1:] {
				if d := metric.distance(src, p); d < bestD {
					dst, bestD = p, d
				}
			}
			memo[src] = dst
		}
		out.Pix[i] = dst.R
		out.Pix[i+1] = dst.G
		out.Pix[i+2] = dst.B
		out.Pix[i+3] = dst.A
	}
	return out
}

// metric computes color distances, caching Lab conversions.
type metric struct {
	mode Distance
	lab  map[imaging.Color][3]float64
}

func newMetric(d Distance) *metric {
	m := &metric{mode: d}
	if d == DistanceLab {
		m.lab = make(map[imaging.Color][3]float64)
	}
	return m
}

func (m *metric) distance(a, b imaging.Color) float64 {
	var pa, pb [3]float64
	if m.mode == DistanceLab {
		pa, pb = m.toLab(a), m.toLab(b)
	} else {
		pa = [3]float64{float64(a.R), float64(a.G), float64(a.B)}
		pb = [3]float64{float64(b.R), float64(b.G), float64(b.B)}
	}
	return floats.Distance(pa[:], pb[:], 2)
}

func (m *metric) toLab(c imaging.Color) [3]float64 {
	if v, ok := m.lab[c]; ok {
		return v
	}
	l, a, b := toColorful(c).Lab()
	v := [3]float64{l, a, b}
	m.lab[c] = v
	return v
}

func toColorful(c imaging.Color) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(c colorful.Color) imaging.Color {
	r, g, b := c.Clamped().RGB255()
	return imaging.Color{R: r, G: g, B: b, A: 255}
}
