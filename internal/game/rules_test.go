package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesValid(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())
}

func TestRulesIntervalFor(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		apples int
		want   time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 190 * time.Millisecond},
		{5, 150 * time.Millisecond},
		{10, 100 * time.Millisecond},
		{14, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.IntervalFor(tt.apples), "apples=%d", tt.apples)
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"zero length", func(r *Rules) { r.InitialLength = 0 }},
		{"grid narrower than snake", func(r *Rules) { r.Grid = Grid{Width: 4, Height: 30} }},
		{"board cannot hold the win", func(r *Rules) { r.Grid = Grid{Width: 5, Height: 5}; r.WinTarget = 30; r.MilestoneAt = 0 }},
		{"milestone at win", func(r *Rules) { r.MilestoneAt = r.WinTarget }},
		{"negative milestone", func(r *Rules) { r.MilestoneAt = -1 }},
		{"no win target", func(r *Rules) { r.WinTarget = 0 }},
		{"min above initial", func(r *Rules) { r.MinInterval = time.Second }},
		{"zero interval", func(r *Rules) { r.InitialInterval = 0 }},
		{"negative speed step", func(r *Rules) { r.SpeedStep = -time.Millisecond }},
		{"bad direction", func(r *Rules) { r.InitialDirection = Direction(5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidRules)
		})
	}
}

func TestRulesSmallestBoard(t *testing.T) {
	r := DefaultRules()
	r.Grid = Grid{Width: 5, Height: 5}
	require.NoError(t, r.Validate(), "25 cells hold length 3 plus 15 apples")
}

func TestProgression(t *testing.T) {
	r := DefaultRules()
	r.MilestoneAt = 2
	r.WinTarget = 4
	p := NewProgression(r)

	milestone, won := p.Record()
	assert.False(t, milestone)
	assert.False(t, won)

	milestone, won = p.Record()
	assert.True(t, milestone)
	assert.False(t, won)
	assert.True(t, p.MilestoneFired())

	milestone, _ = p.Record()
	assert.False(t, milestone, "milestone fires once")

	_, won = p.Record()
	assert.True(t, won)
	assert.Equal(t, 4, p.ApplesEaten())
	assert.Equal(t, 160*time.Millisecond, p.Interval())

	p.Reset()
	assert.Equal(t, 0, p.ApplesEaten())
	assert.False(t, p.MilestoneFired())
	assert.Equal(t, r.InitialInterval, p.Interval())
}

func TestMilestoneDisabled(t *testing.T) {
	r := DefaultRules()
	r.MilestoneAt = 0
	p := NewProgression(r)
	for i := 0; i < r.WinTarget; i++ {
		milestone, _ := p.Record()
		assert.False(t, milestone)
	}
}

func TestPhaseTransitions(t *testing.T) {
	assert.True(t, CanTransition(PhaseIntro, PhasePlaying))
	assert.True(t, CanTransition(PhasePlaying, PhaseWon))
	assert.True(t, CanTransition(PhaseMilestonePause, PhasePlaying))
	assert.False(t, CanTransition(PhaseIntro, PhaseGameOver))
	assert.False(t, CanTransition(PhaseGameOver, PhasePlaying))
	assert.False(t, CanTransition(PhaseWon, PhasePlaying))

	assert.True(t, PhaseWon.Terminal())
	assert.True(t, PhaseGameOver.Terminal())
	assert.False(t, PhaseMilestonePause.Terminal())
}
