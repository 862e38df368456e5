package game

// Segment is one body unit. Dir is presentation only: for the head it is the
// heading used to reach the cell, for body segments it points toward the
// predecessor.
type Segment struct {
	Cell Cell      `json:"cell"`
	Dir  Direction `json:"direction"`
}

// Snake is a ring-buffer deque of segments, head at index 0.
// Capacity is fixed to the grid cell count so it never reallocates.
type Snake struct {
	buf  []Segment
	head int // buf index of segment 0
	n    int
}

// NewSnake places length segments horizontally with the head at the grid
// center and the body trailing opposite to dir.
func NewSnake(grid Grid, length int, dir Direction) *Snake {
	s := &Snake{buf: make([]Segment, grid.CellCount())}
	head := grid.Center()
	back := dir.Opposite()
	cell := head
	for i := 0; i < length; i++ {
		s.pushBack(Segment{Cell: cell, Dir: dir})
		cell = cell.Add(back)
	}
	return s
}

// NewSnakeFromCells builds a snake from explicit cells (head first).
// Segment directions are derived from neighbour links; the head uses heading.
func NewSnakeFromCells(grid Grid, cells []Cell, heading Direction) *Snake {
	s := &Snake{buf: make([]Segment, max(grid.CellCount(), len(cells)))}
	for i, c := range cells {
		dir := heading
		if i > 0 {
			if d, ok := DirectionBetween(c, cells[i-1]); ok {
				dir = d
			}
		}
		s.pushBack(Segment{Cell: c, Dir: dir})
	}
	return s
}

// Len returns the number of segments
func (s *Snake) Len() int {
	return s.n
}

// At returns segment i (0 = head)
func (s *Snake) At(i int) Segment {
	return s.buf[(s.head+i)%len(s.buf)]
}

// Head returns the head segment
func (s *Snake) Head() Segment {
	return s.At(0)
}

// Tail returns the last segment
func (s *Snake) Tail() Segment {
	return s.At(s.n - 1)
}

// Heading is the direction the snake is currently moving in
func (s *Snake) Heading() Direction {
	return s.Head().Dir
}

// Segments copies the body into dst (head first)
func (s *Snake) Segments(dst []Segment) []Segment {
	for i := 0; i < s.n; i++ {
		dst = append(dst, s.At(i))
	}
	return dst
}

// Cells copies the body cells (head first)
func (s *Snake) Cells() []Cell {
	out := make([]Cell, 0, s.n)
	for i := 0; i < s.n; i++ {
		out = append(out, s.At(i).Cell)
	}
	return out
}

// Advance moves the head one cell. When grow is false the tail is removed
// first and returned with removed=true.
//
// The old head becomes segment 1 and its direction is set toward the new
// head; every other body link keeps its relative orientation, so this is the
// full per-tick presentation update.
func (s *Snake) Advance(to Cell, dir Direction, grow bool) (tail Cell, removed bool) {
	if !grow && s.n > 0 {
		tail = s.popBack().Cell
		removed = true
	}
	s.pushFront(Segment{Cell: to, Dir: dir})
	if s.n > 1 {
		idx := (s.head + 1) % len(s.buf)
		if d, ok := DirectionBetween(s.buf[idx].Cell, to); ok {
			s.buf[idx].Dir = d
		}
	}
	return tail, removed
}

func (s *Snake) pushFront(seg Segment) {
	s.head = (s.head - 1 + len(s.buf)) % len(s.buf)
	s.buf[s.head] = seg
	s.n++
}

func (s *Snake) pushBack(seg Segment) {
	s.buf[(s.head+s.n)%len(s.buf)] = seg
	s.n++
}

func (s *Snake) popBack() Segment {
	idx := (s.head + s.n - 1) % len(s.buf)
	seg := s.buf[idx]
	s.n--
	return seg
}
