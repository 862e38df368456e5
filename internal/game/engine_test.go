package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRules() Rules {
	r := smallRules()
	r.InitialInterval = 5 * time.Millisecond
	r.MinInterval = 2 * time.Millisecond
	r.SpeedStep = time.Millisecond
	return r
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: smallRules(), Seed: 4})
	require.NoError(t, err)

	snap := e.GetSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, PhaseIntro, snap.Phase)
	assert.Equal(t, int64(4), e.Stats().Seed)
	assert.Equal(t, uint64(1), e.Stats().Runs)

	_, err = NewEngine(EngineConfig{Rules: Rules{}})
	assert.ErrorIs(t, err, ErrInvalidRules)
}

func TestEngineAutoStart(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: smallRules(), Seed: 4, AutoStart: true})
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, e.GetSnapshot().Phase)
	assert.False(t, e.StartRun())

	e.Restart()
	assert.Equal(t, PhasePlaying, e.GetSnapshot().Phase)
	assert.Equal(t, uint64(2), e.Stats().Runs)
}

func TestEngineRestartAndStart(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: smallRules(), Seed: 4})
	require.NoError(t, err)
	prev := e.GetSnapshot().RunID

	var phases []Phase
	e.OnEvent(func(ev Event) {
		if ev.Type == EventTypePhaseChange {
			var p PhaseChangePayload
			require.NoError(t, ev.DecodePayload(&p))
			phases = append(phases, p.To)
		}
	})

	e.RestartAndStart()
	snap := e.GetSnapshot()
	assert.Equal(t, PhasePlaying, snap.Phase)
	assert.NotEqual(t, prev, snap.RunID)
	assert.Equal(t, uint64(2), e.Stats().Runs)
	assert.Equal(t, []Phase{PhaseIntro, PhasePlaying}, phases)

	// Without AutoStart a plain restart waits in the intro
	e.Restart()
	assert.Equal(t, PhaseIntro, e.GetSnapshot().Phase)
}

func TestEngineManualTicks(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: smallRules(), Seed: 4})
	require.NoError(t, err)

	var (
		events []EventType
		steps  int
	)
	e.OnEvent(func(ev Event) { events = append(events, ev.Type) })
	e.OnStep(func(StepResult, time.Duration) { steps++ })

	res := e.Tick()
	assert.False(t, res.Mutated, "intro gates ticks")
	assert.Equal(t, 1, steps)
	assert.Empty(t, events)

	require.True(t, e.StartRun())
	assert.True(t, e.QueueDirection(DirDown, "test"))
	assert.False(t, e.QueueDirection(DirLeft, "test"))

	res = e.Tick()
	assert.True(t, res.Mutated)
	assert.Equal(t, []EventType{EventTypePhaseChange, EventTypeDirectionQueued, EventTypeTick}, events[:3])

	head, _ := e.GetSnapshot().Head()
	assert.Equal(t, Cell{5, 6}, head.Cell)
	assert.Equal(t, uint64(1), e.Stats().Steps)
	assert.False(t, e.AcknowledgeMilestone())
}

func TestEngineRunsUntilWall(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: fastRules(), Seed: 8, AutoStart: true})
	require.NoError(t, err)
	require.NoError(t, e.StartEventLog(""))
	defer e.StopEventLog()

	var (
		mu       sync.Mutex
		gameOver int
	)
	e.OnEvent(func(ev Event) {
		if ev.Type == EventTypeGameOver {
			mu.Lock()
			gameOver++
			mu.Unlock()
		}
	})

	e.Start()
	e.Start() // second call is a no-op
	defer e.Stop()

	// Heading right from the centre with no input always ends at the wall
	require.Eventually(t, func() bool {
		return e.GetSnapshot().Phase == PhaseGameOver
	}, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	e.Stop()

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Losses)
	assert.False(t, stats.Running)
	assert.Equal(t, CollisionWall, e.GetSnapshot().Collision)

	mu.Lock()
	assert.Equal(t, 1, gameOver)
	mu.Unlock()
	assert.Greater(t, e.EventLogStats().Total, uint64(0))
}

func TestEngineResumesAfterStop(t *testing.T) {
	e, err := NewEngine(EngineConfig{Rules: fastRules(), Seed: 4, AutoStart: true})
	require.NoError(t, err)

	var steps atomic.Int64
	e.OnStep(func(StepResult, time.Duration) { steps.Add(1) })

	e.Start()
	require.Eventually(t, func() bool { return steps.Load() > 0 }, time.Second, 2*time.Millisecond)
	e.Stop()
	assert.False(t, e.Stats().Running)

	stopped := steps.Load()
	e.Start()
	defer e.Stop()
	assert.True(t, e.Stats().Running, "Start after Stop resumes ticking")
	require.Eventually(t, func() bool { return steps.Load() > stopped }, time.Second, 2*time.Millisecond)
}

func TestEngineHooks(t *testing.T) {
	var overs int
	rules := smallRules()
	e, err := NewEngine(EngineConfig{
		Rules:     rules,
		Seed:      8,
		AutoStart: true,
		Hooks:     Hooks{OnGameOver: func(GameOverPayload) { overs++ }},
	})
	require.NoError(t, err)

	for i := 0; i < rules.Grid.Width && e.GetSnapshot().Phase == PhasePlaying; i++ {
		e.Tick()
	}
	assert.Equal(t, PhaseGameOver, e.GetSnapshot().Phase)
	assert.Equal(t, 1, overs)

	e.Tick()
	assert.Equal(t, 1, overs)
}
