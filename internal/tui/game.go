// Package tui hosts the simulation in a terminal with tcell.
package tui

import (
	"time"

	"bernar-snake/internal/game"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
)

const redrawInterval = 33 * time.Millisecond

// Game owns the terminal screen and drives an engine from the keyboard
type Game struct {
	screen tcell.Screen
	engine *game.Engine
	chime  *Chime

	events chan game.Event
	quit   chan struct{}
}

// NewGame wires a screen to an engine. chime may be nil.
// The screen must already be initialised.
func NewGame(screen tcell.Screen, engine *game.Engine, chime *Chime) *Game {
	if chime == nil {
		chime = NewChime(0, 0)
	}
	g := &Game{
		screen: screen,
		engine: engine,
		chime:  chime,
		events: make(chan game.Event, 64),
		quit:   make(chan struct{}),
	}
	// Engine listeners run under the engine lock: hand off, never block
	engine.OnEvent(func(ev game.Event) {
		select {
		case g.events <- ev:
		default:
		}
	})
	return g
}

// HandleKey applies one key press. It returns false when the player quits.
func (g *Game) HandleKey(ev *tcell.EventKey) bool {
	action, dir := MapKey(ev)
	return g.apply(action, dir)
}

func (g *Game) apply(action Action, dir game.Direction) bool {
	switch action {
	case ActionQuit:
		return false
	case ActionMove:
		g.engine.QueueDirection(dir, "keyboard")
	case ActionConfirm:
		g.confirm()
	case ActionRestart:
		g.engine.Restart()
	}
	return true
}

// confirm starts, resumes or replays depending on phase
func (g *Game) confirm() {
	switch g.engine.GetSnapshot().Phase {
	case game.PhaseIntro:
		g.engine.StartRun()
	case game.PhaseMilestonePause:
		g.engine.AcknowledgeMilestone()
	case game.PhaseGameOver, game.PhaseWon:
		g.engine.RestartAndStart()
	}
}

// Quit ends Run from another goroutine
func (g *Game) Quit() {
	select {
	case <-g.quit:
	default:
		close(g.quit)
	}
}

// Run starts the engine and blocks until the player quits
func (g *Game) Run() {
	g.engine.Start()
	defer g.engine.Stop()

	// PollEvent blocks, so it gets its own goroutine
	input := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				return // screen finalised
			}
			input <- ev
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	g.draw()
	for {
		select {
		case <-g.quit:
			return

		case ev := <-input:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !g.HandleKey(ev) {
					return
				}
				g.draw()
			case *tcell.EventResize:
				g.screen.Sync()
				g.draw()
			}

		case ev := <-g.events:
			g.onEvent(ev)

		case <-ticker.C:
			g.draw()
		}
	}
}

func (g *Game) onEvent(ev game.Event) {
	switch ev.Type {
	case game.EventTypeAppleConsumed:
		g.chime.Apple()
	case game.EventTypeMilestone:
		g.chime.Milestone()
	case game.EventTypeWon:
		g.chime.Win()
	case game.EventTypeGameOver:
		g.chime.Crash()
		log.Debug().Str("run", ev.RunID).Msg("💀 Game over")
	}
}

func (g *Game) draw() {
	if snap := g.engine.GetSnapshot(); snap != nil {
		Draw(g.screen, *snap)
	}
}
