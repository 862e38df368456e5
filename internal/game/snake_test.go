package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnake(t *testing.T) {
	g := Grid{Width: 10, Height: 10}
	s := NewSnake(g, 3, DirRight)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []Cell{{5, 5}, {4, 5}, {3, 5}}, s.Cells())
	assert.Equal(t, DirRight, s.Heading())
	assert.Equal(t, Cell{3, 5}, s.Tail().Cell)
}

func TestSnakeAdvance(t *testing.T) {
	g := Grid{Width: 10, Height: 10}

	t.Run("move drops tail", func(t *testing.T) {
		s := NewSnake(g, 3, DirRight)
		tail, removed := s.Advance(Cell{5, 4}, DirUp, false)

		assert.True(t, removed)
		assert.Equal(t, Cell{3, 5}, tail)
		assert.Equal(t, []Cell{{5, 4}, {5, 5}, {4, 5}}, s.Cells())
		assert.Equal(t, DirUp, s.Heading())
		assert.Equal(t, DirUp, s.At(1).Dir, "old head points toward new head")
	})

	t.Run("grow keeps tail", func(t *testing.T) {
		s := NewSnake(g, 3, DirRight)
		_, removed := s.Advance(Cell{6, 5}, DirRight, true)

		assert.False(t, removed)
		assert.Equal(t, []Cell{{6, 5}, {5, 5}, {4, 5}, {3, 5}}, s.Cells())
	})

	t.Run("ring wraps without reallocating", func(t *testing.T) {
		small := Grid{Width: 3, Height: 3}
		s := NewSnakeFromCells(small, []Cell{{0, 0}}, DirRight)
		path := []Cell{{1, 0}, {2, 0}, {2, 1}, {1, 1}, {0, 1}, {0, 2}, {1, 2}, {2, 2}}
		for i, c := range path {
			d, ok := DirectionBetween(s.Head().Cell, c)
			require.True(t, ok)
			s.Advance(c, d, i%2 == 0)
		}
		assert.Equal(t, 5, s.Len())
		assert.Equal(t, Cell{2, 2}, s.Head().Cell)
	})
}

func TestNewSnakeFromCellsDirections(t *testing.T) {
	g := Grid{Width: 10, Height: 10}
	s := NewSnakeFromCells(g, []Cell{{5, 5}, {6, 5}, {6, 4}}, DirLeft)

	assert.Equal(t, DirLeft, s.At(0).Dir)
	assert.Equal(t, DirLeft, s.At(1).Dir)
	assert.Equal(t, DirDown, s.At(2).Dir)
}
