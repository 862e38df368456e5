package game

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is one of the four grid headings
type Direction uint8

const (
	DirRight Direction = iota // zero value: the initial heading
	DirDown
	DirLeft
	DirUp
)

// ErrUnknownDirection is returned when text does not name a direction
var ErrUnknownDirection = errors.New("unknown direction")

// Directions lists every heading in a stable order
var Directions = [...]Direction{DirUp, DirDown, DirLeft, DirRight}

// Vector returns the unit step in screen coordinates (Up decreases Row)
func (d Direction) Vector() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// Opposite returns the reversed heading
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	default:
		return d
	}
}

// IsOpposite reports whether d and other point in exactly reversed headings
func (d Direction) IsOpposite(other Direction) bool {
	return d.Opposite() == other
}

// Valid reports whether d is one of the four headings
func (d Direction) Valid() bool {
	return d <= DirUp
}

// String returns the lower-case name used in JSON and commands
func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseDirection accepts the names produced by String, case-insensitive
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	case "left":
		return DirLeft, nil
	case "right":
		return DirRight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// DirectionBetween returns the heading that steps from one cell to an
// orthogonally adjacent one. ok is false for any other pair.
func DirectionBetween(from, to Cell) (d Direction, ok bool) {
	for _, cand := range Directions {
		if from.Add(cand) == to {
			return cand, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDirection, d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
