package game

import (
	"errors"
	"math/rand"
)

// ErrBoardFull means the spawner was asked for a cell while every cell is
// occupied. Rules.Validate keeps this unreachable.
var ErrBoardFull = errors.New("no free cell for apple")

// AppleSpawner picks a uniformly random unoccupied cell
type AppleSpawner struct {
	grid        Grid
	rng         *rand.Rand
	maxAttempts int
	scratch     []Cell // reused by the free-cell fallback
}

// NewAppleSpawner creates a spawner. maxAttempts <= 0 uses 4x the cell count.
func NewAppleSpawner(grid Grid, rng *rand.Rand, maxAttempts int) *AppleSpawner {
	if maxAttempts <= 0 {
		maxAttempts = 4 * grid.CellCount()
	}
	return &AppleSpawner{
		grid:        grid,
		rng:         rng,
		maxAttempts: maxAttempts,
	}
}

// Spawn draws random cells and rejects occupied ones. After maxAttempts it
// falls back to choosing among the free cells directly, which keeps the
// distribution uniform and guarantees termination on a crowded board.
// Panics with ErrBoardFull when nothing is free.
func (s *AppleSpawner) Spawn(occ *OccupancyIndex) Cell {
	if occ.Free() == 0 {
		panic(ErrBoardFull)
	}

	for i := 0; i < s.maxAttempts; i++ {
		c := Cell{
			Col: s.rng.Intn(s.grid.Width),
			Row: s.rng.Intn(s.grid.Height),
		}
		if !occ.IsOccupied(c) {
			return c
		}
	}

	s.scratch = occ.FreeCells(s.scratch[:0])
	return s.scratch[s.rng.Intn(len(s.scratch))]
}
