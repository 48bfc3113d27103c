package mosaic

import (
	"image"
	"math"
	"strings"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/grid"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// RenderMode selects how block rectangles are laid out.
type RenderMode int

const (
	// RenderBlocks paints fixed uniform blocks and gates the crisp blend on
	// the edge map. The optimized grid is not consulted.
	RenderBlocks RenderMode = iota

	// RenderAdaptive places block boundaries on the optimized grid lines.
	RenderAdaptive

	// RenderCurved places block boundaries on the curved cell outlines of
	// the optimized grid.
	RenderCurved
)

func (m RenderMode) String() string {
	switch m {
	case RenderAdaptive:
		return "adaptive"
	case RenderCurved:
		return "curved"
	default:
		return "blocks"
	}
}

// ParseRenderMode maps "blocks", "adaptive" or "curved" to a RenderMode.
// Unknown names return RenderBlocks.
func ParseRenderMode(name string) RenderMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "adaptive":
		return RenderAdaptive
	case "curved":
		return RenderCurved
	default:
		return RenderBlocks
	}
}

// curveSamplesPerEdge is the polygon resolution used by curved rendering.
const curveSamplesPerEdge = 8

// RenderEdgeGated paints ceil(w/blockSize) x ceil(h/blockSize) uniform
// blocks.
//
// A block with no edge-positive pixel gets the plain mean of its samples. A
// block that touches an edge blends toward the luma median with weight
// sharpness * strength, where strength is the largest 3x3 mean of the edge
// map found inside the block. An isolated edge pixel therefore sharpens a
// block much less than a solid contour does.
//
// A nil or mismatched edge map is treated as having no edges.
func RenderEdgeGated(buf *imaging.PixelBuffer, edges *imaging.EdgeMap, blockSize int, sharpness float64) *imaging.PixelBuffer {
	if out, ok := emptyOutput(buf); !ok {
		return out
	}
	if blockSize < 1 {
		logging.Logger().Warn("block size below 1, using 1", "block_size", blockSize)
		blockSize = 1
	}
	edges = usableEdges(edges, buf)
	sharpness = clamp01(sharpness)

	cols := (buf.Width + blockSize - 1) / blockSize
	rows := (buf.Height + blockSize - 1) / blockSize

	out := imaging.NewPixelBuffer(buf.Width, buf.Height)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rect := image.Rect(
				blockEdge(c, cols, buf.Width), blockEdge(r, rows, buf.Height),
				blockEdge(c+1, cols, buf.Width), blockEdge(r+1, rows, buf.Height),
			)
			if rect.Empty() {
				continue
			}
			mean, median, ok := sampleStats(buf, rect)
			if !ok {
				continue
			}
			weight := sharpness * maxLocalStrength(edges, rect)
			out.FillRect(rect, opaque(blend(mean, median, weight)))
		}
	}
	return out
}

// usableEdges returns edges, or nil when it was built for another size.
func usableEdges(edges *imaging.EdgeMap, buf *imaging.PixelBuffer) *imaging.EdgeMap {
	if edges != nil && !edges.Matches(buf.Width, buf.Height) {
		logging.Logger().Warn("edge map does not match buffer, rendering without edges",
			"width", buf.Width, "height", buf.Height)
		return nil
	}
	return edges
}

// maxLocalStrength returns the largest 3x3 box mean of the edge map over the
// pixels of rect, or 0 when rect holds no edge-positive pixel.
func maxLocalStrength(edges *imaging.EdgeMap, rect image.Rectangle) float64 {
	if edges == nil {
		return 0
	}
	best := 0.0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if !edges.IsEdge(x, y) {
				continue
			}
			sum := 0.0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += edges.At(x+dx, y+dy)
				}
			}
			if s := sum / 9; s > best {
				best = s
			}
		}
	}
	return best
}

// RenderGrid paints one rectangle per grid cell. Column boundaries sit at
// the rounded mean X of the corners on each column line of g, row
// boundaries at the rounded mean Y of each row line. Every block is sampled
// over exactly the rectangle it covers and blended with the same edge gate
// as RenderEdgeGated, so a thin feature inside a cell keeps its color.
//
// A nil or mismatched edge map is treated as having no edges. A nil grid or one built for a different size is logged and the buffer is
// returned as an opaque copy.
func RenderGrid(buf *imaging.PixelBuffer, g *grid.Grid, edges *imaging.EdgeMap, sharpness float64) *imaging.PixelBuffer {
	if out, ok := emptyOutput(buf); !ok {
		return out
	}
	if !gridMatches(g, buf) {
		return opaqueCopy(buf)
	}

	xs := make([]float64, g.Cols+1)
	ys := make([]float64, g.Rows+1)
	for col := 0; col <= g.Cols; col++ {
		sum := 0.0
		for row := 0; row <= g.Rows; row++ {
			sum += g.Corners[g.CornerIndex(row, col)].X
		}
		xs[col] = sum / float64(g.Rows+1)
	}
	for row := 0; row <= g.Rows; row++ {
		sum := 0.0
		for col := 0; col <= g.Cols; col++ {
			sum += g.Corners[g.CornerIndex(row, col)].Y
		}
		ys[row] = sum / float64(g.Cols+1)
	}

	return paintRects(buf, edges, snapBoundaries(xs, buf.Width), snapBoundaries(ys, buf.Height), sharpness)
}

// RenderCurvedGrid is RenderGrid with boundaries taken from the sampled
// curved outlines of the cells instead of the corners alone.
func RenderCurvedGrid(buf *imaging.PixelBuffer, g *grid.Grid, edges *imaging.EdgeMap, curve grid.CurveOptions, sharpness float64) *imaging.PixelBuffer {
	if out, ok := emptyOutput(buf); !ok {
		return out
	}
	if !gridMatches(g, buf) {
		return opaqueCopy(buf)
	}
	curve.Enabled = true

	cache := newPolygonCache(g, curveSamplesPerEdge)
	xs := make([]float64, g.Cols+1)
	ys := make([]float64, g.Rows+1)
	xs[g.Cols] = float64(g.Width)
	ys[g.Rows] = float64(g.Height)

	// Line c > 0 is the right side of column c-1.
	for col := 1; col < g.Cols; col++ {
		sum := 0.0
		for row := 0; row < g.Rows; row++ {
			sum += cache.sideMean(g.CellIndex(row, col-1), sideRight, curve)
		}
		xs[col] = sum / float64(g.Rows)
	}
	for row := 1; row < g.Rows; row++ {
		sum := 0.0
		for col := 0; col < g.Cols; col++ {
			sum += cache.sideMean(g.CellIndex(row-1, col), sideBottom, curve)
		}
		ys[row] = sum / float64(g.Cols)
	}

	logging.Logger().Debug("curved render boundaries computed",
		"polygons", len(cache.entries), "cache_hits", cache.hits)

	return paintRects(buf, edges, snapBoundaries(xs, buf.Width), snapBoundaries(ys, buf.Height), sharpness)
}

// paintRects fills the partition defined by xs and ys, gating the crisp
// blend of each rectangle on the edges it contains.
func paintRects(buf *imaging.PixelBuffer, edges *imaging.EdgeMap, xs, ys []int, sharpness float64) *imaging.PixelBuffer {
	edges = usableEdges(edges, buf)
	sharpness = clamp01(sharpness)

	out := imaging.NewPixelBuffer(buf.Width, buf.Height)
	for r := 0; r+1 < len(ys); r++ {
		for c := 0; c+1 < len(xs); c++ {
			rect := image.Rect(xs[c], ys[r], xs[c+1], ys[r+1])
			if rect.Empty() {
				continue
			}
			mean, median, ok := sampleStats(buf, rect)
			if !ok {
				continue
			}
			weight := sharpness * maxLocalStrength(edges, rect)
			out.FillRect(rect, opaque(blend(mean, median, weight)))
		}
	}
	return out
}

// snapBoundaries rounds line positions to pixels, pins the outer lines to 0
// and length and keeps the sequence non-decreasing so the rectangles tile
// the axis exactly.
func snapBoundaries(lines []float64, length int) []int {
	out := make([]int, len(lines))
	for i, v := range lines {
		p := int(math.Round(v))
		if p < 0 {
			p = 0
		}
		if p > length {
			p = length
		}
		if i > 0 && p < out[i-1] {
			p = out[i-1]
		}
		out[i] = p
	}
	out[0] = 0
	out[len(out)-1] = length
	return out
}

func gridMatches(g *grid.Grid, buf *imaging.PixelBuffer) bool {
	if g == nil {
		logging.Logger().Warn("render called without a grid, returning source")
		return false
	}
	if g.Width != buf.Width || g.Height != buf.Height {
		logging.Logger().Warn("grid does not match buffer, returning source",
			"grid_width", g.Width, "grid_height", g.Height,
			"width", buf.Width, "height", buf.Height)
		return false
	}
	return true
}

// emptyOutput reports ok=false with a fallback buffer when buf cannot be
// rendered.
func emptyOutput(buf *imaging.PixelBuffer) (*imaging.PixelBuffer, bool) {
	if buf == nil {
		logging.Logger().Warn("render called with nil buffer")
		return imaging.NewPixelBuffer(0, 0), false
	}
	if !buf.Valid() {
		logging.Logger().Warn("render called with malformed buffer",
			"width", buf.Width, "height", buf.Height, "len", len(buf.Pix))
		return imaging.NewPixelBuffer(0, 0), false
	}
	if buf.Width == 0 || buf.Height == 0 {
		return imaging.NewPixelBuffer(buf.Width, buf.Height), false
	}
	return nil, true
}

func opaqueCopy(buf *imaging.PixelBuffer) *imaging.PixelBuffer {
	out := buf.Clone()
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}

func opaque(c imaging.Color) imaging.Color {
	c.A = 255
	return c
}

// Sides of a cell polygon, in the order CellPolygon emits them.
const (
	sideTop = iota
	sideRight
	sideBottom
	sideLeft
)

type polygonKey struct {
	cell       int
	degree     int
	smoothness float64
}

// polygonCache memoizes sampled cell outlines for one render call.
type polygonCache struct {
	grid    *grid.Grid
	samples int
	entries map[polygonKey][]grid.Point
	hits    int
}

func newPolygonCache(g *grid.Grid, samplesPerEdge int) *polygonCache {
	return &polygonCache{
		grid:    g,
		samples: samplesPerEdge,
		entries: make(map[polygonKey][]grid.Point),
	}
}

func (c *polygonCache) polygon(cell int, curve grid.CurveOptions) []grid.Point {
	key := polygonKey{cell: cell, degree: curve.Degree, smoothness: curve.Smoothness}
	if poly, ok := c.entries[key]; ok {
		c.hits++
		return poly
	}
	poly := c.grid.CellPolygon(cell, curve, c.samples)
	c.entries[key] = poly
	return poly
}

// sideMean averages the coordinate across one side of a cell outline: X for
// left and right sides, Y for top and bottom. Both endpoints are included.
func (c *polygonCache) sideMean(cell, side int, curve grid.CurveOptions) float64 {
	poly := c.polygon(cell, curve)
	per := c.samples - 1
	sum := 0.0
	for i := 0; i <= per; i++ {
		p := poly[(side*per+i)%len(poly)]
		if side == sideLeft || side == sideRight {
			sum += p.X
		} else {
			sum += p.Y
		}
	}
	return sum / float64(per+1)
}
