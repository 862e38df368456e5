package game

// Snapshot is an immutable copy of simulation state for rendering.
// Uses value types (segments are copied) so it can be shared across goroutines.
type Snapshot struct {
	RunID          string    `json:"runId"`
	Phase          Phase     `json:"phase"`
	Grid           Grid      `json:"grid"`
	Segments       []Segment `json:"snakeSegments"`
	Apple          *Cell     `json:"appleCell"`
	ApplesEaten    int       `json:"applesEaten"`
	TickIntervalMs int64     `json:"tickIntervalMs"`
	Tick           uint64    `json:"tick"`
	WinTarget      int       `json:"winTarget"`
	MilestoneAt    int       `json:"milestoneAt"`
	Collision      Collision `json:"collision"`
}

// Length returns the number of snake segments
func (s *Snapshot) Length() int {
	return len(s.Segments)
}

// Head returns the head segment; ok is false for an empty snapshot
func (s *Snapshot) Head() (Segment, bool) {
	if len(s.Segments) == 0 {
		return Segment{}, false
	}
	return s.Segments[0], true
}

// Occupies reports whether any segment covers c (linear, for tests and renderers)
func (s *Snapshot) Occupies(c Cell) bool {
	for _, seg := range s.Segments {
		if seg.Cell == c {
			return true
		}
	}
	return false
}

// StepResult is returned by Simulation.Step
type StepResult struct {
	Snapshot  Snapshot
	Events    []Event
	Mutated   bool      // false when the phase gated the step
	Collision Collision // set when this step ended the run
}

// Highlight is the most notable change between two consecutive snapshots,
// for hosts that only see snapshots and not events
type Highlight uint8

const (
	HighlightNone Highlight = iota
	HighlightApple
	HighlightMilestone
	HighlightWon
	HighlightGameOver
)

// HighlightBetween compares snapshots of the same run; a new run or a
// missing previous snapshot yields HighlightNone
func HighlightBetween(prev, next *Snapshot) Highlight {
	if prev == nil || next == nil || prev.RunID != next.RunID {
		return HighlightNone
	}
	switch {
	case next.Phase == PhaseWon && prev.Phase != PhaseWon:
		return HighlightWon
	case next.Phase == PhaseGameOver && prev.Phase != PhaseGameOver:
		return HighlightGameOver
	case next.Phase == PhaseMilestonePause && prev.Phase != PhaseMilestonePause:
		return HighlightMilestone
	case next.ApplesEaten > prev.ApplesEaten:
		return HighlightApple
	}
	return HighlightNone
}
