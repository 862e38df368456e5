package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bernar-snake/internal/game"
	"bernar-snake/internal/input"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	cmds []input.Command
}

func (s *recordingSink) Enqueue(cmd input.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return true
}

func (s *recordingSink) commands() []input.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]input.Command(nil), s.cmds...)
}

type recordingForgetter struct {
	mu      sync.Mutex
	sources []string
}

func (f *recordingForgetter) Forget(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func (f *recordingForgetter) forgotten() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

func startHub(t *testing.T, cfg HubConfig) (*WebSocketHub, string) {
	t.Helper()
	hub := NewWebSocketHub(cfg)
	go hub.Run()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestParseWSCommand(t *testing.T) {
	tests := []struct {
		msg     string
		want    input.CommandType
		wantErr bool
	}{
		{"up", input.CmdDirection, false},
		{"  !restart ", input.CmdRestart, false},
		{`{"command":"ok"}`, input.CmdAck, false},
		{`{"command":"sideways"}`, 0, true},
		{`{broken`, 0, true},
		{"hello", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cmd, err := parseWSCommand([]byte(tt.msg))
			if tt.wantErr {
				assert.ErrorIs(t, err, input.ErrUnknownCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
		})
	}
}

func TestOriginChecker(t *testing.T) {
	oc := NewOriginChecker([]string{"https://snake.example", "https://*.games.example"})

	assert.True(t, oc.Allowed(""))
	assert.True(t, oc.Allowed("http://localhost:5173"))
	assert.True(t, oc.Allowed("http://127.0.0.1:3000"))
	assert.True(t, oc.Allowed("https://snake.example"))
	assert.True(t, oc.Allowed("https://arcade.games.example"))
	assert.False(t, oc.Allowed("https://evil.example"))
	assert.False(t, oc.Allowed("://bad"))

	assert.True(t, NewOriginChecker([]string{"*"}).Allowed("https://anything.example"))
}

func TestWebSocketRoundTrip(t *testing.T) {
	sink := &recordingSink{}
	hub, url := startHub(t, HubConfig{Commands: sink})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("left")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"start"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nonsense")))
	require.Eventually(t, func() bool { return len(sink.commands()) == 2 }, time.Second, 5*time.Millisecond)

	cmds := sink.commands()
	assert.Equal(t, input.CmdDirection, cmds[0].Type)
	assert.Equal(t, game.DirLeft, cmds[0].Direction)
	assert.Equal(t, input.CmdStart, cmds[1].Type)
	assert.True(t, strings.HasPrefix(cmds[0].Source, "ws:"))
	assert.Equal(t, cmds[0].Source, cmds[1].Source, "one source per connection")

	hub.BroadcastEvent(game.NewEvent(game.EventTypeMilestone, 4, "run-1", "", game.MilestonePayload{ApplesEaten: 10}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg struct {
		Event string     `json:"event"`
		Data  game.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, WSEventGame, msg.Event)
	assert.Equal(t, game.EventTypeMilestone, msg.Data.Type)
}

func TestWebSocketDisconnectForgetsSource(t *testing.T) {
	sink := &recordingSink{}
	limits := &recordingForgetter{}
	hub, url := startHub(t, HubConfig{Commands: sink, Limits: limits})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("up")))
	require.Eventually(t, func() bool { return len(sink.commands()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, limits.forgotten(), "connected clients keep their limit state")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(limits.forgotten()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sink.commands()[0].Source, limits.forgotten()[0])
}

func TestWebSocketBroadcastLoop(t *testing.T) {
	hub, url := startHub(t, HubConfig{})
	engine, err := game.NewEngine(game.EngineConfig{Rules: game.DefaultRules(), Seed: 1})
	require.NoError(t, err)
	hub.StartBroadcastLoop(engine, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string        `json:"event"`
		Data  game.Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, WSEventState, msg.Event)
	assert.Equal(t, engine.GetSnapshot().RunID, msg.Data.RunID)
}

func TestWebSocketPerIPLimit(t *testing.T) {
	hub, url := startHub(t, HubConfig{MaxConnectionsPerIP: 1})

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Closing frees the slot
	first.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	again, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	again.Close()
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	_, url := startHub(t, HubConfig{Origins: NewOriginChecker([]string{"https://snake.example"})})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConnSlots(t *testing.T) {
	slots := newConnSlots(2)
	assert.True(t, slots.acquire("10.0.0.1"))
	assert.True(t, slots.acquire("10.0.0.1"))
	assert.False(t, slots.acquire("10.0.0.1"))
	assert.True(t, slots.acquire("10.0.0.2"), "caps are per IP")

	slots.release("10.0.0.1")
	assert.True(t, slots.acquire("10.0.0.1"))

	slots.release("10.0.0.2")
	assert.NotContains(t, slots.open, "10.0.0.2", "idle IPs are dropped")
}
