package input

import (
	"bernar-snake/internal/game"

	"github.com/rs/zerolog/log"
)

// Controller is the slice of the engine that commands drive
type Controller interface {
	QueueDirection(d game.Direction, source string) bool
	StartRun() bool
	AcknowledgeMilestone() bool
	Restart()
}

// Handler applies commands to the game
type Handler struct {
	ctrl        Controller
	rateLimiter *RateLimiter
}

// NewHandler creates a new command handler. A nil limiter disables rate limiting.
func NewHandler(ctrl Controller, limiter *RateLimiter) *Handler {
	return &Handler{
		ctrl:        ctrl,
		rateLimiter: limiter,
	}
}

// allowed applies the per-source limit; local input has no source
func (h *Handler) allowed(cmd Command) bool {
	if h.rateLimiter == nil || cmd.Source == "" {
		return true
	}
	if cmd.Type == CmdDirection {
		return h.rateLimiter.AllowTurn(cmd.Source)
	}
	return h.rateLimiter.Allow(cmd.Source)
}

// ProcessCommand handles a single command and reports whether the game accepted it
func (h *Handler) ProcessCommand(cmd Command) bool {
	if !h.allowed(cmd) {
		log.Debug().Str("source", cmd.Source).Str("cmd", cmd.Type.String()).Msg("🚫 Rate limited")
		return false
	}

	switch cmd.Type {
	case CmdDirection:
		return h.ctrl.QueueDirection(cmd.Direction, cmd.Source)
	case CmdStart:
		return h.ctrl.StartRun()
	case CmdAck:
		return h.ctrl.AcknowledgeMilestone()
	case CmdRestart:
		h.ctrl.Restart()
		return true
	default:
		// Unknown command - silently ignore
		return false
	}
}
