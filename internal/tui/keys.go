package tui

import (
	"bernar-snake/internal/game"

	"github.com/gdamore/tcell/v2"
)

// Action is what a key press asks the host to do
type Action int

const (
	ActionNone Action = iota
	ActionMove
	ActionConfirm // start, acknowledge or play again depending on phase
	ActionRestart
	ActionQuit
)

// MapKey translates a key event. dir is only meaningful for ActionMove.
func MapKey(ev *tcell.EventKey) (action Action, dir game.Direction) {
	return mapKey(ev.Key(), ev.Rune())
}

func mapKey(key tcell.Key, r rune) (Action, game.Direction) {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit, 0
	case tcell.KeyUp:
		return ActionMove, game.DirUp
	case tcell.KeyDown:
		return ActionMove, game.DirDown
	case tcell.KeyLeft:
		return ActionMove, game.DirLeft
	case tcell.KeyRight:
		return ActionMove, game.DirRight
	case tcell.KeyEnter:
		return ActionConfirm, 0
	case tcell.KeyRune:
	default:
		return ActionNone, 0
	}

	switch r {
	case 'w', 'W':
		return ActionMove, game.DirUp
	case 's', 'S':
		return ActionMove, game.DirDown
	case 'a', 'A':
		return ActionMove, game.DirLeft
	case 'd', 'D':
		return ActionMove, game.DirRight
	case ' ':
		return ActionConfirm, 0
	case 'r', 'R':
		return ActionRestart, 0
	case 'q', 'Q':
		return ActionQuit, 0
	}
	return ActionNone, 0
}
