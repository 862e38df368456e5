package tui

import (
	"time"

	"bernar-snake/internal/game"

	"github.com/gdamore/tcell/v2"
)

// Feed supplies snapshots from a game running in another process
type Feed interface {
	Latest() *game.Snapshot
}

// Spectator draws a remote game read-only
type Spectator struct {
	screen tcell.Screen
	feed   Feed
	chime  *Chime
	last   *game.Snapshot
}

// NewSpectator wires a screen to a feed. chime may be nil.
func NewSpectator(screen tcell.Screen, feed Feed, chime *Chime) *Spectator {
	if chime == nil {
		chime = NewChime(0, 0)
	}
	return &Spectator{screen: screen, feed: feed, chime: chime}
}

// Run blocks until q, Esc or Ctrl-C
func (s *Spectator) Run() {
	input := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			input <- ev
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	s.refresh()
	for {
		select {
		case ev := <-input:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if action, _ := MapKey(ev); action == ActionQuit {
					return
				}
			case *tcell.EventResize:
				s.screen.Sync()
				s.refresh()
			}
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh plays the cue for whatever changed and redraws
func (s *Spectator) refresh() {
	snap := s.feed.Latest()
	if snap == nil {
		s.screen.Clear()
		drawText(s.screen, 0, 0, styleBanner, "Waiting for a game...")
		s.screen.Show()
		return
	}
	if snap == s.last {
		return
	}

	switch game.HighlightBetween(s.last, snap) {
	case game.HighlightApple:
		s.chime.Apple()
	case game.HighlightMilestone:
		s.chime.Milestone()
	case game.HighlightWon:
		s.chime.Win()
	case game.HighlightGameOver:
		s.chime.Crash()
	}
	s.last = snap
	Draw(s.screen, *snap)
}
