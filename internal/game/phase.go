package game

import "fmt"

// Phase is the top-level run state gating whether ticks have any effect
type Phase uint8

const (
	PhaseIntro Phase = iota
	PhasePlaying
	PhaseMilestonePause
	PhaseGameOver
	PhaseWon
)

// phaseTransitions lists the legal edges. Restart is handled separately
// because it is allowed from every phase.
var phaseTransitions = map[Phase][]Phase{
	PhaseIntro:          {PhasePlaying},
	PhasePlaying:        {PhaseMilestonePause, PhaseGameOver, PhaseWon},
	PhaseMilestonePause: {PhasePlaying},
}

// CanTransition reports whether from -> to is a legal edge
func CanTransition(from, to Phase) bool {
	for _, p := range phaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the run has ended
func (p Phase) Terminal() bool {
	return p == PhaseGameOver || p == PhaseWon
}

// String returns the snake_case name used in JSON and logs
func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhasePlaying:
		return "playing"
	case PhaseMilestonePause:
		return "milestone_pause"
	case PhaseGameOver:
		return "game_over"
	case PhaseWon:
		return "won"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Phase) UnmarshalText(text []byte) error {
	for cand := PhaseIntro; cand <= PhaseWon; cand++ {
		if cand.String() == string(text) {
			*p = cand
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Collision classifies why a step ended the run
type Collision uint8

const (
	CollisionNone Collision = iota
	CollisionWall
	CollisionSelf
)

// String returns "none", "wall" or "self"
func (c Collision) String() string {
	switch c {
	case CollisionWall:
		return "wall"
	case CollisionSelf:
		return "self"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler
func (c Collision) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Collision) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*c = CollisionNone
	case "wall":
		*c = CollisionWall
	case "self":
		*c = CollisionSelf
	default:
		return fmt.Errorf("unknown collision %q", text)
	}
	return nil
}
