package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightBetween(t *testing.T) {
	base := Snapshot{RunID: "r", Phase: PhasePlaying, ApplesEaten: 3}
	with := func(phase Phase, apples int) *Snapshot {
		s := base
		s.Phase, s.ApplesEaten = phase, apples
		return &s
	}
	other := base
	other.RunID = "r2"
	other.ApplesEaten = 4

	tests := []struct {
		name string
		prev *Snapshot
		next *Snapshot
		want Highlight
	}{
		{"first snapshot", nil, &base, HighlightNone},
		{"plain tick", &base, with(PhasePlaying, 3), HighlightNone},
		{"apple", &base, with(PhasePlaying, 4), HighlightApple},
		{"milestone", &base, with(PhaseMilestonePause, 4), HighlightMilestone},
		{"crash", &base, with(PhaseGameOver, 3), HighlightGameOver},
		{"win", &base, with(PhaseWon, 4), HighlightWon},
		{"still won", with(PhaseWon, 4), with(PhaseWon, 4), HighlightNone},
		{"new run", &base, &other, HighlightNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighlightBetween(tt.prev, tt.next))
		})
	}
}

func TestSnapshotAccessors(t *testing.T) {
	var empty Snapshot
	_, ok := empty.Head()
	assert.False(t, ok)
	assert.Zero(t, empty.Length())

	snap := Snapshot{Segments: []Segment{
		{Cell: Cell{Col: 2, Row: 1}, Dir: DirUp},
		{Cell: Cell{Col: 2, Row: 2}, Dir: DirUp},
	}}
	head, ok := snap.Head()
	assert.True(t, ok)
	assert.Equal(t, Cell{Col: 2, Row: 1}, head.Cell)
	assert.Equal(t, 2, snap.Length())
	assert.True(t, snap.Occupies(Cell{Col: 2, Row: 2}))
	assert.False(t, snap.Occupies(Cell{Col: 3, Row: 2}))
}
