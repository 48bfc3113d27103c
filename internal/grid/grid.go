// Package grid implements the deformable lattice used by the adaptive
// pixelation pipeline.
//
// A Grid is a rows x cols lattice of quadrilateral cells over an image. The
// (rows+1) x (cols+1) corners live in a single arena slice and cells refer to
// them by index, so a corner moved by the optimizer is seen by every cell
// that shares it. Border corners never move, which keeps the outer edge of
// the image fully covered.
//
// # Coordinate System
//
// Corner coordinates are continuous image coordinates: (0,0) is the top-left
// of the first pixel and (width, height) the bottom-right of the last.
package grid

import (
	"github.com/gogpu/gg"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// Point is a 2D position in image space.
type Point = gg.Point

// Corner is a movable lattice vertex.
//
// OriginalX and OriginalY hold the position in the initial uniform lattice.
// They never change and serve as the relaxation anchor.
type Corner struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	OriginalX float64 `json:"original_x"`
	OriginalY float64 `json:"original_y"`
}

// Pos returns the current position.
func (c Corner) Pos() Point {
	return Point{X: c.X, Y: c.Y}
}

// Displacement returns the distance from the original lattice position.
func (c Corner) Displacement() float64 {
	return c.Pos().Distance(Point{X: c.OriginalX, Y: c.OriginalY})
}

// Corner slots within Cell.Corners, in winding order.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Cell is a quadrilateral defined by four corner indices in the order
// top-left, top-right, bottom-right, bottom-left.
type Cell struct {
	Corners [4]int `json:"corners"`
}

// Grid is the adaptive lattice.
type Grid struct {
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Corners []Corner `json:"corners"`
	Cells   []Cell   `json:"cells"`
}

// New builds the initial uniform lattice for a width x height image with
// blocks of roughly blockSize pixels.
//
// cols = ceil(width/blockSize) and rows = ceil(height/blockSize); corner
// (row, col) sits at (col*width/cols, row*height/rows). A block size below 1
// is replaced by 1 and a warning is logged.
func New(width, height, blockSize int) *Grid {
	if blockSize < 1 {
		logging.Logger().Warn("grid block size below 1, using 1", "block_size", blockSize)
		blockSize = 1
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	cols := (width + blockSize - 1) / blockSize
	rows := (height + blockSize - 1) / blockSize
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	g := &Grid{
		Rows:    rows,
		Cols:    cols,
		Width:   width,
		Height:  height,
		Corners: make([]Corner, (rows+1)*(cols+1)),
		Cells:   make([]Cell, 0, rows*cols),
	}

	for row := 0; row <= rows; row++ {
		for col := 0; col <= cols; col++ {
			x := float64(col*width) / float64(cols)
			y := float64(row*height) / float64(rows)
			g.Corners[g.CornerIndex(row, col)] = Corner{X: x, Y: y, OriginalX: x, OriginalY: y}
		}
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			g.Cells = append(g.Cells, Cell{Corners: [4]int{
				g.CornerIndex(row, col),
				g.CornerIndex(row, col+1),
				g.CornerIndex(row+1, col+1),
				g.CornerIndex(row+1, col),
			}})
		}
	}

	return g
}

// CornerIndex returns the arena index of corner (row, col).
func (g *Grid) CornerIndex(row, col int) int {
	return row*(g.Cols+1) + col
}

// CornerRowCol is the inverse of CornerIndex.
func (g *Grid) CornerRowCol(idx int) (row, col int) {
	return idx / (g.Cols + 1), idx % (g.Cols + 1)
}

// CellIndex returns the index of cell (row, col).
func (g *Grid) CellIndex(row, col int) int {
	return row*g.Cols + col
}

// IsBorder reports whether the corner at idx lies on the outer boundary.
func (g *Grid) IsBorder(idx int) bool {
	row, col := g.CornerRowCol(idx)
	return row == 0 || col == 0 || row == g.Rows || col == g.Cols
}

// CellWidth is the horizontal lattice spacing.
func (g *Grid) CellWidth() float64 {
	return float64(g.Width) / float64(g.Cols)
}

// CellHeight is the vertical lattice spacing.
func (g *Grid) CellHeight() float64 {
	return float64(g.Height) / float64(g.Rows)
}

// Neighbors returns the arena indices of the lattice corners joined to idx
// by a cell edge: up, right, down, left. Missing neighbors are -1.
func (g *Grid) Neighbors(idx int) [4]int {
	row, col := g.CornerRowCol(idx)
	n := [4]int{-1, -1, -1, -1}
	if row > 0 {
		n[0] = g.CornerIndex(row-1, col)
	}
	if col < g.Cols {
		n[1] = g.CornerIndex(row, col+1)
	}
	if row < g.Rows {
		n[2] = g.CornerIndex(row+1, col)
	}
	if col > 0 {
		n[3] = g.CornerIndex(row, col-1)
	}
	return n
}

// Clone returns a deep copy. The optimizer mutates corners in place, so
// callers that need the initial lattice afterwards should clone first.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Rows:    g.Rows,
		Cols:    g.Cols,
		Width:   g.Width,
		Height:  g.Height,
		Corners: make([]Corner, len(g.Corners)),
		Cells:   make([]Cell, len(g.Cells)),
	}
	copy(out.Corners, g.Corners)
	copy(out.Cells, g.Cells)
	return out
}

// MaxDisplacement returns the largest distance of any corner from its
// original lattice position.
func (g *Grid) MaxDisplacement() float64 {
	max := 0.0
	for _, c := range g.Corners {
		if d := c.Displacement(); d > max {
			max = d
		}
	}
	return max
}
