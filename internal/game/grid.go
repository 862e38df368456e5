package game

import "fmt"

// Cell is a discrete grid coordinate
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Add returns the cell offset by the direction's unit vector
func (c Cell) Add(d Direction) Cell {
	dx, dy := d.Vector()
	return Cell{Col: c.Col + dx, Row: c.Row + dy}
}

// String returns "(col,row)"
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// Grid is the immutable play field measured in cells
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewGridFromArea derives the grid from a pixel play area and a cell size.
// Partial cells at the right/bottom edge are dropped.
func NewGridFromArea(areaWidth, areaHeight, cellSize int) Grid {
	if cellSize <= 0 {
		return Grid{}
	}
	return Grid{
		Width:  areaWidth / cellSize,
		Height: areaHeight / cellSize,
	}
}

// InBounds reports whether c lies inside [0,Width) x [0,Height)
func (g Grid) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < g.Width && c.Row >= 0 && c.Row < g.Height
}

// Index converts a cell to its row-major offset. Caller must check InBounds.
func (g Grid) Index(c Cell) int {
	return c.Row*g.Width + c.Col
}

// CellAt is the inverse of Index
func (g Grid) CellAt(idx int) Cell {
	return Cell{Col: idx % g.Width, Row: idx / g.Width}
}

// CellCount returns the total number of cells
func (g Grid) CellCount() int {
	return g.Width * g.Height
}

// Center returns the middle cell (rounded down)
func (g Grid) Center() Cell {
	return Cell{Col: g.Width / 2, Row: g.Height / 2}
}
