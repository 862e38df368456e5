package input

import (
	"errors"
	"strings"
	"time"

	"bernar-snake/internal/game"
)

// ErrUnknownCommand is returned by Parse for text that matches no alias
var ErrUnknownCommand = errors.New("unknown command")

// CommandType for routing
type CommandType int

const (
	CmdUnknown CommandType = iota
	CmdDirection
	CmdStart
	CmdAck
	CmdRestart
)

func (t CommandType) String() string {
	switch t {
	case CmdDirection:
		return "direction"
	case CmdStart:
		return "start"
	case CmdAck:
		return "ack"
	case CmdRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// Command is a parsed player intent
type Command struct {
	Type       CommandType
	Direction  game.Direction // only for CmdDirection
	Source     string         // client identifier, used for rate limiting and event attribution
	ReceivedAt time.Time
}

// DirectionAliases maps words and WASD keys to headings
var DirectionAliases = map[string]game.Direction{
	// Up variants
	"up":     game.DirUp,
	"w":      game.DirUp,
	"arriba": game.DirUp,

	// Down variants
	"down":  game.DirDown,
	"s":     game.DirDown,
	"abajo": game.DirDown,

	// Left variants
	"left":      game.DirLeft,
	"a":         game.DirLeft,
	"izquierda": game.DirLeft,

	// Right variants
	"right":   game.DirRight,
	"d":       game.DirRight,
	"derecha": game.DirRight,
}

// ControlCommands maps phase controls to types
var ControlCommands = map[string]CommandType{
	// Start variants
	"start": CmdStart,
	"go":    CmdStart,
	"play":  CmdStart,

	// Acknowledge variants
	"ok":       CmdAck,
	"ack":      CmdAck,
	"continue": CmdAck,

	// Restart variants
	"restart": CmdRestart,
	"r":       CmdRestart,
	"reset":   CmdRestart,
}

// Parse turns "up", "!restart", "/W" and friends into a Command.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(text string) (Command, error) {
	word := strings.ToLower(strings.TrimSpace(text))
	word = strings.TrimLeft(word, "!/")
	if word == "" {
		return Command{}, ErrUnknownCommand
	}
	// Only the first word counts: "up please" is still up.
	if i := strings.IndexAny(word, " \t"); i >= 0 {
		word = word[:i]
	}

	if d, ok := DirectionAliases[word]; ok {
		return Command{Type: CmdDirection, Direction: d}, nil
	}
	if t, ok := ControlCommands[word]; ok {
		return Command{Type: t}, nil
	}
	return Command{}, ErrUnknownCommand
}
