package palette

import (
	"math"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// maxKMeansSamples caps the observations handed to k-means.
const maxKMeansSamples = 12000

// kmeansCandidates clusters a subsample of buf in RGB space and returns the
// cluster centers weighted by population. More clusters than k are formed
// so the diversity selection still has a choice to make.
func kmeansCandidates(buf *imaging.PixelBuffer, k int) []candidate {
	w, h := buf.Width, buf.Height
	if w == 0 || h == 0 {
		return nil
	}

	step := 1
	if w*h > maxKMeansSamples {
		step = int(math.Sqrt(float64(w*h)/float64(maxKMeansSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(w*h, maxKMeansSamples))
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			c := buf.At(x, y)
			if c.A == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(c.R) / 255,
				float64(c.G) / 255,
				float64(c.B) / 255,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*4, k+2), len(dataset))
	cc, err := kmeans.New().Partition(dataset, workK)
	if err != nil {
		logging.Logger().Warn("k-means partition failed", "error", err, "k", workK)
		return nil
	}

	weights := make(map[imaging.Color]float64)
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := fromColorful(colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]})
		weights[col] += float64(len(c.Observations))
	}
	return weightedCandidates(weights)
}

// dominantCandidates returns the weighted dominant colors of buf.
func dominantCandidates(buf *imaging.PixelBuffer, k int) []candidate {
	if buf.Width == 0 || buf.Height == 0 {
		return nil
	}

	found := dominantcolor.FindWeight(buf.ToImage(), max(24, k*8))
	weights := make(map[imaging.Color]float64)
	for _, d := range found {
		col, _ := colorful.MakeColor(d.RGBA)
		weight := d.Weight
		if weight <= 0 {
			weight = 1e-6
		}
		weights[fromColorful(col)] += weight
	}
	return weightedCandidates(weights)
}

func weightedCandidates(weights map[imaging.Color]float64) []candidate {
	cands := make([]candidate, 0, len(weights))
	for c, w := range weights {
		cands = append(cands, candidate{color: c, weight: w})
	}
	sortCandidates(cands)
	return cands
}
