package game

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRules wraps every Rules.Validate failure
var ErrInvalidRules = errors.New("invalid rules")

// Rules are the fixed parameters of a run
type Rules struct {
	Grid             Grid
	InitialLength    int
	InitialDirection Direction

	InitialInterval time.Duration // tick interval at zero apples
	MinInterval     time.Duration // floor for the interval
	SpeedStep       time.Duration // interval reduction per apple

	WinTarget   int // apples needed to win
	MilestoneAt int // apples that trigger the one-shot pause, 0 disables

	MaxSpawnAttempts int // rejection-sampling attempts before the free-cell fallback, 0 = 4x cells
}

// DefaultRules mirrors the shipped mini-game: a 600x600px area of 20px cells,
// 15 apples to win with a celebration pause at 10.
func DefaultRules() Rules {
	return Rules{
		Grid:             NewGridFromArea(600, 600, 20),
		InitialLength:    3,
		InitialDirection: DirRight,
		InitialInterval:  200 * time.Millisecond,
		MinInterval:      100 * time.Millisecond,
		SpeedStep:        10 * time.Millisecond,
		WinTarget:        15,
		MilestoneAt:      10,
	}
}

// IntervalFor returns max(MinInterval, InitialInterval - apples*SpeedStep)
func (r Rules) IntervalFor(apples int) time.Duration {
	interval := r.InitialInterval - time.Duration(apples)*r.SpeedStep
	if interval < r.MinInterval {
		return r.MinInterval
	}
	return interval
}

// InitialCells returns the starting body, head first
func (r Rules) InitialCells() []Cell {
	cells := make([]Cell, 0, r.InitialLength)
	back := r.InitialDirection.Opposite()
	c := r.Grid.Center()
	for i := 0; i < r.InitialLength; i++ {
		cells = append(cells, c)
		c = c.Add(back)
	}
	return cells
}

// Validate checks the bounds that keep every run well-formed. In particular
// the grid must hold the longest possible snake plus one apple, which makes
// ErrBoardFull unreachable.
func (r Rules) Validate() error {
	if r.InitialLength < 1 {
		return fmt.Errorf("%w: initial length %d < 1", ErrInvalidRules, r.InitialLength)
	}
	if !r.InitialDirection.Valid() {
		return fmt.Errorf("%w: initial direction %d", ErrInvalidRules, r.InitialDirection)
	}
	if r.Grid.Width < r.InitialLength+2 || r.Grid.Height < r.InitialLength+2 {
		return fmt.Errorf("%w: grid %dx%d too small for initial length %d",
			ErrInvalidRules, r.Grid.Width, r.Grid.Height, r.InitialLength)
	}
	for _, c := range r.InitialCells() {
		if !r.Grid.InBounds(c) {
			return fmt.Errorf("%w: initial snake leaves the grid at %s", ErrInvalidRules, c)
		}
	}
	if r.WinTarget < 1 {
		return fmt.Errorf("%w: win target %d < 1", ErrInvalidRules, r.WinTarget)
	}
	if r.MilestoneAt < 0 || r.MilestoneAt >= r.WinTarget {
		return fmt.Errorf("%w: milestone %d must be in [0,%d)", ErrInvalidRules, r.MilestoneAt, r.WinTarget)
	}
	if r.Grid.CellCount() < r.InitialLength+r.WinTarget {
		return fmt.Errorf("%w: %d cells cannot fit length %d plus %d apples",
			ErrInvalidRules, r.Grid.CellCount(), r.InitialLength, r.WinTarget)
	}
	if r.InitialInterval <= 0 || r.MinInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidRules)
	}
	if r.MinInterval > r.InitialInterval {
		return fmt.Errorf("%w: min interval %s exceeds initial %s", ErrInvalidRules, r.MinInterval, r.InitialInterval)
	}
	if r.SpeedStep < 0 {
		return fmt.Errorf("%w: negative speed step", ErrInvalidRules)
	}
	return nil
}
