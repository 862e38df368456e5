package input

import (
	"sync"
	"testing"
	"time"

	"bernar-snake/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingController struct {
	mu        sync.Mutex
	calls     []string
	accept    bool
	restarted int
}

func (c *recordingController) QueueDirection(d game.Direction, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, d.String())
	return c.accept
}

func (c *recordingController) StartRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "start")
	return c.accept
}

func (c *recordingController) AcknowledgeMilestone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "ack")
	return c.accept
}

func (c *recordingController) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "restart")
	c.restarted++
}

func (c *recordingController) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestParse(t *testing.T) {
	tests := []struct {
		text    string
		want    CommandType
		wantDir game.Direction
	}{
		{"up", CmdDirection, game.DirUp},
		{"  W ", CmdDirection, game.DirUp},
		{"!left", CmdDirection, game.DirLeft},
		{"/derecha", CmdDirection, game.DirRight},
		{"s", CmdDirection, game.DirDown},
		{"down please", CmdDirection, game.DirDown},
		{"start", CmdStart, 0},
		{"!go", CmdStart, 0},
		{"OK", CmdAck, 0},
		{"continue", CmdAck, 0},
		{"r", CmdRestart, 0},
		{"!reset", CmdRestart, 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
			if tt.want == CmdDirection {
				assert.Equal(t, tt.wantDir, cmd.Direction)
			}
		})
	}
}

func TestParseUnknown(t *testing.T) {
	for _, text := range []string{"", "   ", "!", "jump", "upp"} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrUnknownCommand, "text=%q", text)
	}
}

func TestRateLimiterCooldownAndWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxPerWindow:     3,
		WindowDuration:   time.Second,
		CooldownDuration: 100 * time.Millisecond,
	})
	defer rl.Stop()

	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "inside cooldown")
	assert.True(t, rl.Allow("b"), "clients are independent")

	clock = clock.Add(150 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	clock = clock.Add(150 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	clock = clock.Add(150 * time.Millisecond)
	assert.False(t, rl.Allow("a"), "window exhausted")

	clock = clock.Add(time.Second)
	assert.True(t, rl.Allow("a"), "new window")

	rl.Forget("a")
	assert.True(t, rl.Allow("a"), "forgotten client starts fresh")
}

func TestHandlerRoutesCommands(t *testing.T) {
	ctrl := &recordingController{accept: true}
	h := NewHandler(ctrl, nil)

	assert.True(t, h.ProcessCommand(Command{Type: CmdStart}))
	assert.True(t, h.ProcessCommand(Command{Type: CmdDirection, Direction: game.DirUp}))
	assert.True(t, h.ProcessCommand(Command{Type: CmdAck}))
	assert.True(t, h.ProcessCommand(Command{Type: CmdRestart}))
	assert.False(t, h.ProcessCommand(Command{Type: CmdUnknown}))

	assert.Equal(t, []string{"start", "up", "ack", "restart"}, ctrl.snapshot())
}

func TestHandlerRateLimitsBySource(t *testing.T) {
	ctrl := &recordingController{accept: true}
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 1, WindowDuration: time.Hour})
	defer rl.Stop()
	h := NewHandler(ctrl, rl)

	assert.True(t, h.ProcessCommand(Command{Type: CmdStart, Source: "ws:1"}))
	assert.False(t, h.ProcessCommand(Command{Type: CmdStart, Source: "ws:1"}))
	assert.True(t, h.ProcessCommand(Command{Type: CmdStart}), "local input is never limited")
	assert.Len(t, ctrl.snapshot(), 2)
}

func TestHandlerTwoKeyTurnWithinCooldown(t *testing.T) {
	ctrl := &recordingController{accept: true}
	rl := NewRateLimiter(DefaultRateLimitConfig)
	defer rl.Stop()

	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }
	h := NewHandler(ctrl, rl)

	assert.True(t, h.ProcessCommand(Command{Type: CmdDirection, Direction: game.DirDown, Source: "ws:1"}))
	clock = clock.Add(10 * time.Millisecond)
	assert.True(t, h.ProcessCommand(Command{Type: CmdDirection, Direction: game.DirRight, Source: "ws:1"}),
		"second key of a turn lands inside the cooldown")
	assert.Equal(t, []string{"down", "right"}, ctrl.snapshot())

	assert.False(t, h.ProcessCommand(Command{Type: CmdRestart, Source: "ws:1"}), "control commands still cool down")
}

func TestRateLimiterTurnsShareWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		MaxPerWindow:     2,
		WindowDuration:   time.Second,
		CooldownDuration: 100 * time.Millisecond,
	})
	defer rl.Stop()

	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.AllowTurn("a"))
	assert.True(t, rl.AllowTurn("a"))
	assert.False(t, rl.AllowTurn("a"), "window exhausted")
	clock = clock.Add(2 * time.Second)
	assert.True(t, rl.AllowTurn("a"))
}

func TestCommandQueuePreservesOrder(t *testing.T) {
	ctrl := &recordingController{accept: true}
	q := NewCommandQueue(NewHandler(ctrl, nil), QueueConfig{BufferSize: 16})

	// Enqueue before Start so the order is fixed before the consumer runs
	for _, d := range []game.Direction{game.DirUp, game.DirLeft, game.DirDown, game.DirRight} {
		require.True(t, q.Enqueue(Command{Type: CmdDirection, Direction: d}))
	}
	q.Start()
	q.Stop()

	assert.Equal(t, []string{"up", "left", "down", "right"}, ctrl.snapshot())
	stats := q.Stats()
	assert.Equal(t, uint64(4), stats.Enqueued)
	assert.Equal(t, uint64(4), stats.Processed)
	assert.Equal(t, uint64(4), stats.Accepted)
	assert.Equal(t, uint64(0), stats.Pending)
}

func TestCommandQueueDropsWhenFull(t *testing.T) {
	ctrl := &recordingController{}
	q := NewCommandQueue(NewHandler(ctrl, nil), QueueConfig{BufferSize: 2})

	assert.True(t, q.Enqueue(Command{Type: CmdStart}))
	assert.True(t, q.Enqueue(Command{Type: CmdStart}))
	assert.False(t, q.Enqueue(Command{Type: CmdStart}))

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(2), stats.Pending)
	assert.InDelta(t, 100.0, stats.BufferUsagePct, 0.001)

	q.Start()
	q.Stop()
	assert.Equal(t, uint64(0), q.Stats().Accepted, "controller rejected both")
}
