package grid

import (
	"math"

	"github.com/gogpu/gg"
)

// EdgeKind selects the geometry of a cell edge.
type EdgeKind int

const (
	// EdgeStraight is the chord between the two corners.
	EdgeStraight EdgeKind = iota
	// EdgeQuadratic is a quadratic Bezier with one control point.
	EdgeQuadratic
	// EdgeCubic is a cubic Bezier with two control points.
	EdgeCubic
)

// maxBendRatio caps the control point offset at this fraction of the chord.
const maxBendRatio = 0.25

// CurveOptions configures curved cell edges.
type CurveOptions struct {
	// Enabled switches from straight chords to Bezier edges.
	Enabled bool

	// Degree is 2 (quadratic) or 3 (cubic). Other values mean quadratic.
	Degree int

	// Smoothness in [0,1] scales how far the control points may leave the
	// chord.
	Smoothness float64
}

func (c CurveOptions) kind() EdgeKind {
	if !c.Enabled {
		return EdgeStraight
	}
	if c.Degree == 3 {
		return EdgeCubic
	}
	return EdgeQuadratic
}

// EdgePath is one cell edge. C1 is used by quadratic and cubic paths, C2
// only by cubic ones.
type EdgePath struct {
	Kind   EdgeKind
	P0, P1 Point
	C1, C2 Point
}

// Eval returns the point at parameter t in [0,1].
func (e EdgePath) Eval(t float64) Point {
	switch e.Kind {
	case EdgeQuadratic:
		return gg.NewQuadBez(e.P0, e.C1, e.P1).Eval(t)
	case EdgeCubic:
		return gg.NewCubicBez(e.P0, e.C1, e.C2, e.P1).Eval(t)
	default:
		return gg.NewLine(e.P0, e.P1).Eval(t)
	}
}

// ChordLength is the straight-line distance between the endpoints.
func (e EdgePath) ChordLength() float64 {
	return e.P0.Distance(e.P1)
}

// Samples returns n points evenly spaced in t, endpoints included.
func (e EdgePath) Samples(n int) []Point {
	if n < 2 {
		n = 2
	}
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = e.Eval(float64(i) / float64(n-1))
	}
	return pts
}

// Reversed returns the same curve traversed from P1 to P0.
func (e EdgePath) Reversed() EdgePath {
	r := EdgePath{Kind: e.Kind, P0: e.P1, P1: e.P0, C1: e.C1, C2: e.C2}
	if e.Kind == EdgeCubic {
		r.C1, r.C2 = e.C2, e.C1
	}
	return r
}

// EdgePath returns the edge between lattice-adjacent corners a and b,
// oriented from a to b.
func (g *Grid) EdgePath(a, b int, curve CurveOptions) EdgePath {
	return g.edgePath(a, b, curve, -1, Point{})
}

// edgePath is EdgePath with corner moved temporarily placed at at. Pass
// moved = -1 to use the stored positions only.
//
// The curve is always built from the lower index to the higher one and
// reversed afterwards, so the two cells sharing an edge get the same shape.
func (g *Grid) edgePath(a, b int, curve CurveOptions, moved int, at Point) EdgePath {
	pos := func(i int) Point {
		if i == moved {
			return at
		}
		return g.Corners[i].Pos()
	}
	orig := func(i int) Point {
		return Point{X: g.Corners[i].OriginalX, Y: g.Corners[i].OriginalY}
	}

	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	p0, p1 := pos(lo), pos(hi)
	path := EdgePath{Kind: curve.kind(), P0: p0, P1: p1}

	if path.Kind != EdgeStraight {
		bend := g.edgeBend(lo, hi, pos, orig) * clamp01(curve.Smoothness)
		chord := p1.Sub(p0)
		length := chord.Length()
		limit := maxBendRatio * length
		bend = math.Max(-limit, math.Min(limit, bend))

		var normal Point
		if length > 0 {
			normal = Point{X: -chord.Y / length, Y: chord.X / length}
		}
		offset := normal.Mul(bend)

		if path.Kind == EdgeCubic {
			path.C1 = p0.Lerp(p1, 1.0/3).Add(offset)
			path.C2 = p0.Lerp(p1, 2.0/3).Add(offset)
		} else {
			path.C1 = p0.Lerp(p1, 0.5).Add(offset)
		}
	}

	if a > b {
		return path.Reversed()
	}
	return path
}

// edgeBend measures how far the far sides of the cells sharing edge lo-hi
// have shifted along the edge normal, relative to the uniform lattice,
// averaged over those cells. Zero on an undeformed grid.
func (g *Grid) edgeBend(lo, hi int, pos, orig func(int) Point) float64 {
	r0, c0 := g.CornerRowCol(lo)
	r1, c1 := g.CornerRowCol(hi)

	var far [][2]int
	switch {
	case r0 == r1 && c1 == c0+1:
		if r0 > 0 {
			far = append(far, [2]int{g.CornerIndex(r0-1, c0), g.CornerIndex(r0-1, c1)})
		}
		if r0 < g.Rows {
			far = append(far, [2]int{g.CornerIndex(r0+1, c0), g.CornerIndex(r0+1, c1)})
		}
	case c0 == c1 && r1 == r0+1:
		if c0 > 0 {
			far = append(far, [2]int{g.CornerIndex(r0, c0-1), g.CornerIndex(r1, c0-1)})
		}
		if c0 < g.Cols {
			far = append(far, [2]int{g.CornerIndex(r0, c0+1), g.CornerIndex(r1, c0+1)})
		}
	default:
		return 0
	}
	if len(far) == 0 {
		return 0
	}

	side := func(p func(int) Point) (float64, Point, Point) {
		a, b := p(lo), p(hi)
		chord := b.Sub(a)
		l := chord.Length()
		if l == 0 {
			return 0, a, Point{}
		}
		return l, a.Lerp(b, 0.5), Point{X: -chord.Y / l, Y: chord.X / l}
	}
	l, mid, n := side(pos)
	lo0, mid0, n0 := side(orig)
	if l == 0 || lo0 == 0 {
		return 0
	}

	total := 0.0
	for _, f := range far {
		cur := pos(f[0]).Lerp(pos(f[1]), 0.5).Sub(mid).Dot(n)
		base := orig(f[0]).Lerp(orig(f[1]), 0.5).Sub(mid0).Dot(n0)
		total += cur - base
	}
	return total / float64(len(far))
}

// CellPolygon samples the outline of cell idx clockwise from its top-left
// corner, using samplesPerEdge points per edge (shared endpoints appear once).
func (g *Grid) CellPolygon(idx int, curve CurveOptions, samplesPerEdge int) []Point {
	if samplesPerEdge < 2 {
		samplesPerEdge = 2
	}
	c := g.Cells[idx].Corners
	poly := make([]Point, 0, 4*(samplesPerEdge-1))
	for i := 0; i < 4; i++ {
		pts := g.EdgePath(c[i], c[(i+1)%4], curve).Samples(samplesPerEdge)
		poly = append(poly, pts[:len(pts)-1]...)
	}
	return poly
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
