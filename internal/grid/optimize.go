package grid

import (
	"math"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// maxShiftRatio bounds how far a corner may travel from its lattice position,
// as a fraction of the lattice spacing on each axis. Anything below 0.5 keeps
// each corner inside its own quadrant of every adjoining cell, so no cell can
// fold over or collapse.
const maxShiftRatio = 0.45

// tieTolerance treats scores this close as equal.
const tieTolerance = 1e-12

// Options configures Optimize.
type Options struct {
	// SearchRadius sets the local search neighborhood: a square of side
	// floor(sqrt(SearchRadius)) candidates per axis centered on the corner.
	// An even side has no center column, so its candidates sit on half
	// steps around the corner.
	SearchRadius int

	// Iterations is the fixed number of relaxation passes.
	Iterations int

	// StepSize is the spacing in pixels between search candidates.
	StepSize float64

	// Sharpness in [0,1]. Higher values damp less, snapping corners onto
	// edges more aggressively.
	Sharpness float64

	// UseCurvedEdges scores Bezier edges instead of straight chords.
	UseCurvedEdges bool

	// CurveDegree is 2 or 3.
	CurveDegree int

	// CurveSmoothness in [0,1] scales how far curved edges may bend.
	CurveSmoothness float64

	// DensityRadius is the radius in pixels of the disc sampled for edge density.
	DensityRadius int

	// ConvergenceEpsilon stops early once no corner moved more than this
	// many pixels in a pass. Zero always runs every iteration.
	ConvergenceEpsilon float64
}

// DefaultOptions returns the settings used by the MCP tools.
func DefaultOptions() Options {
	return Options{
		SearchRadius:    25,
		Iterations:      3,
		StepSize:        1,
		Sharpness:       0.5,
		CurveDegree:     2,
		CurveSmoothness: 0.5,
		DensityRadius:   2,
	}
}

// Curve returns the curve settings implied by the options.
func (o Options) Curve() CurveOptions {
	return CurveOptions{
		Enabled:    o.UseCurvedEdges,
		Degree:     o.CurveDegree,
		Smoothness: o.CurveSmoothness,
	}
}

// Stats summarizes an optimizer run.
type Stats struct {
	Iterations      int     `json:"iterations"`
	MovedCorners    int     `json:"moved_corners"`
	MaxDisplacement float64 `json:"max_displacement"`
	Converged       bool    `json:"converged"`
}

// Optimize relocates the interior corners of g toward image edges.
//
// # Scoring
//
// A candidate position p for a corner scores the fraction of edge pixels
// within DensityRadius of p, plus an alignment term for each of the up to
// four lattice edges meeting at the corner. Alignment samples
// max(3, ceil(length*1.5)) points along the edge and adds
//
//	0.4 * fraction of samples on edge pixels
//	0.4 * longest consecutive run of edge samples / sample count
//	0.2 if p itself is on an edge pixel
//
// # Relaxation
//
// Each pass visits interior corners in row-major order, finds the best
// candidate on the search square and moves only part of the way there:
//
//	damping = base + range*(1 - progress)
//
// where base grows with Sharpness and progress runs from 0 on the first pass
// to 1 on the last, so later passes refine instead of lurching.
//
// Corners are updated in place. Border corners never move. When edges has no
// edge pixels every candidate ties and the grid is left untouched; when its
// size does not match the grid a warning is logged and nothing changes.
func Optimize(g *Grid, edges *imaging.EdgeMap, opts Options) Stats {
	var stats Stats
	log := logging.Logger()

	if g == nil {
		log.Warn("optimize called with nil grid")
		return stats
	}
	if !edges.Matches(g.Width, g.Height) {
		log.Warn("edge map does not match grid, leaving grid unchanged",
			"grid_width", g.Width, "grid_height", g.Height)
		return stats
	}
	if edges.EdgeCount() == 0 {
		log.Debug("no edges found, keeping uniform grid")
		return stats
	}
	if opts.Iterations <= 0 {
		return stats
	}

	step := opts.StepSize
	if !(step > 0) || math.IsInf(step, 0) {
		log.Warn("invalid optimizer step size, using 1", "step_size", opts.StepSize)
		step = 1
	}
	side := int(math.Floor(math.Sqrt(float64(opts.SearchRadius))))
	offsets := searchOffsets(side, step)
	base, span := dampingSchedule(opts.Sharpness)

	s := &scorer{
		grid:   g,
		edges:  edges,
		curve:  opts.Curve(),
		radius: opts.DensityRadius,
	}
	maxDX := maxShiftRatio * g.CellWidth()
	maxDY := maxShiftRatio * g.CellHeight()
	moved := make([]bool, len(g.Corners))

	for it := 0; it < opts.Iterations; it++ {
		progress := 0.0
		if opts.Iterations > 1 {
			progress = float64(it) / float64(opts.Iterations-1)
		}
		damping := base + span*(1-progress)
		passMax := 0.0

		for idx := range g.Corners {
			if g.IsBorder(idx) {
				continue
			}
			c := &g.Corners[idx]
			cur := c.Pos()
			best := cur
			bestScore := s.score(idx, cur)
			bestDist := 0.0

			for _, dy := range offsets {
				for _, dx := range offsets {
					if dx == 0 && dy == 0 {
						continue
					}
					cand := Point{X: cur.X + dx, Y: cur.Y + dy}
					if cand.X < 0 || cand.Y < 0 || cand.X > float64(g.Width) || cand.Y > float64(g.Height) {
						continue
					}
					if math.Abs(cand.X-c.OriginalX) > maxDX || math.Abs(cand.Y-c.OriginalY) > maxDY {
						continue
					}
					sc := s.score(idx, cand)
					dist := cand.Distance(cur)
					if sc > bestScore+tieTolerance ||
						(math.Abs(sc-bestScore) <= tieTolerance && dist < bestDist) {
						best, bestScore, bestDist = cand, sc, dist
					}
				}
			}

			if best == cur {
				continue
			}
			next := cur.Lerp(best, damping)
			next.X = clampRange(next.X, c.OriginalX-maxDX, c.OriginalX+maxDX)
			next.Y = clampRange(next.Y, c.OriginalY-maxDY, c.OriginalY+maxDY)
			next.X = clampRange(next.X, 0, float64(g.Width))
			next.Y = clampRange(next.Y, 0, float64(g.Height))

			if d := next.Distance(cur); d > passMax {
				passMax = d
			}
			c.X, c.Y = next.X, next.Y
			moved[idx] = true
		}

		stats.Iterations++
		if opts.ConvergenceEpsilon > 0 && passMax < opts.ConvergenceEpsilon {
			stats.Converged = true
			break
		}
	}

	for _, m := range moved {
		if m {
			stats.MovedCorners++
		}
	}
	stats.MaxDisplacement = g.MaxDisplacement()

	log.Debug("grid optimized",
		"iterations", stats.Iterations,
		"moved", stats.MovedCorners,
		"max_displacement", stats.MaxDisplacement)

	return stats
}

// searchOffsets returns side offsets, step apart and centered on zero.
func searchOffsets(side int, step float64) []float64 {
	if side < 1 {
		side = 1
	}
	center := float64(side-1) / 2
	offsets := make([]float64, side)
	for i := range offsets {
		offsets[i] = (float64(i) - center) * step
	}
	return offsets
}

// dampingSchedule derives the damping base and range from sharpness. The
// base rises and the range narrows as sharpness grows, so damping stays
// within [0.3, 0.8].
func dampingSchedule(sharpness float64) (base, span float64) {
	sharpness = clamp01(sharpness)
	return 0.3 + 0.4*sharpness, 0.3 - 0.2*sharpness
}

// scorer evaluates candidate corner positions against one edge map.
type scorer struct {
	grid   *Grid
	edges  *imaging.EdgeMap
	curve  CurveOptions
	radius int
}

func (s *scorer) score(idx int, p Point) float64 {
	onEdge := s.edges.IsEdge(int(math.Floor(p.X)), int(math.Floor(p.Y)))
	total := s.density(p)
	for _, nb := range s.grid.Neighbors(idx) {
		if nb < 0 {
			continue
		}
		total += s.alignment(s.grid.edgePath(idx, nb, s.curve, idx, p), onEdge)
	}
	return total
}

// density is the fraction of in-bounds pixels within radius of p that are
// edge-positive.
func (s *scorer) density(p Point) float64 {
	r := s.radius
	if r < 0 {
		r = 0
	}
	cx, cy := int(math.Floor(p.X)), int(math.Floor(p.Y))
	total, hits := 0, 0
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := cx+dx, cy+dy
			if x < 0 || y < 0 || x >= s.edges.Width || y >= s.edges.Height {
				continue
			}
			total++
			if s.edges.IsEdge(x, y) {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (s *scorer) alignment(path EdgePath, onEdge bool) float64 {
	n := int(math.Ceil(path.ChordLength() * 1.5))
	if n < 3 {
		n = 3
	}

	hits, run, longest := 0, 0, 0
	for i := 0; i < n; i++ {
		pt := path.Eval(float64(i) / float64(n-1))
		if s.edges.IsEdge(int(math.Floor(pt.X)), int(math.Floor(pt.Y))) {
			hits++
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	score := 0.4*float64(hits)/float64(n) + 0.4*float64(longest)/float64(n)
	if onEdge {
		score += 0.2
	}
	return score
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
