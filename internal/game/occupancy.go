package game

// OccupancyIndex marks which cells are covered by the snake body.
// Cells are stored in row-major order (cells[row*width+col]) so every query is O(1).
type OccupancyIndex struct {
	grid  Grid
	cells []bool
	count int
}

// NewOccupancyIndex creates an empty index for the grid
func NewOccupancyIndex(grid Grid) *OccupancyIndex {
	return &OccupancyIndex{
		grid:  grid,
		cells: make([]bool, grid.CellCount()),
	}
}

// IsOccupied reports whether c is covered. Out-of-bounds cells are never occupied.
func (o *OccupancyIndex) IsOccupied(c Cell) bool {
	if !o.grid.InBounds(c) {
		return false
	}
	return o.cells[o.grid.Index(c)]
}

// Occupy marks c as covered
func (o *OccupancyIndex) Occupy(c Cell) {
	if !o.grid.InBounds(c) {
		return
	}
	idx := o.grid.Index(c)
	if !o.cells[idx] {
		o.cells[idx] = true
		o.count++
	}
}

// Vacate clears c
func (o *OccupancyIndex) Vacate(c Cell) {
	if !o.grid.InBounds(c) {
		return
	}
	idx := o.grid.Index(c)
	if o.cells[idx] {
		o.cells[idx] = false
		o.count--
	}
}

// Count returns the number of occupied cells
func (o *OccupancyIndex) Count() int {
	return o.count
}

// Free returns the number of unoccupied cells
func (o *OccupancyIndex) Free() int {
	return len(o.cells) - o.count
}

// Reset clears every cell without reallocating
func (o *OccupancyIndex) Reset() {
	for i := range o.cells {
		o.cells[i] = false
	}
	o.count = 0
}

// FreeCells appends every unoccupied cell to dst in row-major order
func (o *OccupancyIndex) FreeCells(dst []Cell) []Cell {
	for i, taken := range o.cells {
		if !taken {
			dst = append(dst, o.grid.CellAt(i))
		}
	}
	return dst
}
