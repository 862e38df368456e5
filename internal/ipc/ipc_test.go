package ipc

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"bernar-snake/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	hello := HelloMessage{Width: 30, Height: 20, WinTarget: 15, MilestoneAt: 10, Seed: 42}
	require.NoError(t, WriteMessage(&buf, MsgTypeHello, hello))
	require.NoError(t, WriteMessage(&buf, MsgTypePing, nil))

	msgType, body, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeHello, msgType)
	got, err := DecodeHello(body)
	require.NoError(t, err)
	assert.Equal(t, hello, *got)

	msgType, body, err = ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgTypePing, msgType)
	assert.Empty(t, body)
}

func TestReadMessageRejectsBadHeaders(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header[0:2], ProtocolVersion+1)
	_, _, err := ReadMessage(bytes.NewReader(header))
	assert.ErrorContains(t, err, "version mismatch")

	binary.LittleEndian.PutUint16(header[0:2], ProtocolVersion)
	binary.LittleEndian.PutUint32(header[4:8], MaxMessageSize+1)
	_, _, err = ReadMessage(bytes.NewReader(header))
	assert.ErrorContains(t, err, "message too large")

	_, _, err = ReadMessage(bytes.NewReader(header[:3]))
	assert.Error(t, err)
}

func TestSnapshotMessageConversion(t *testing.T) {
	apple := game.Cell{Col: 7, Row: 1}
	snap := &game.Snapshot{
		RunID: "run-1",
		Phase: game.PhaseGameOver,
		Grid:  game.Grid{Width: 10, Height: 8},
		Segments: []game.Segment{
			{Cell: game.Cell{Col: 3, Row: 2}, Dir: game.DirUp},
			{Cell: game.Cell{Col: 3, Row: 3}, Dir: game.DirUp},
		},
		Apple:          &apple,
		ApplesEaten:    4,
		TickIntervalMs: 160,
		Tick:           99,
		WinTarget:      15,
		MilestoneAt:    10,
		Collision:      game.CollisionSelf,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, MsgTypeSnapshot, NewSnapshotMessage(5, snap)))
	_, body, err := ReadMessage(&buf)
	require.NoError(t, err)
	msg, err := DecodeSnapshot(body)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), msg.Sequence)
	assert.Equal(t, snap, msg.ToSnapshot())

	snap.Apple = nil
	assert.Nil(t, NewSnapshotMessage(6, snap).ToSnapshot().Apple)
}

func TestHelloFromRules(t *testing.T) {
	rules := game.DefaultRules()
	hello := HelloFromRules(rules, 9)
	assert.Equal(t, rules.Grid.Width, hello.Width)
	assert.Equal(t, rules.Grid.Height, hello.Height)
	assert.Equal(t, rules.WinTarget, hello.WinTarget)
	assert.Equal(t, int64(9), hello.Seed)
}

func TestPublishSnapshotSkipsRepeats(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "feed.sock"))
	p.running.Store(true) // queue without a listener

	snap := &game.Snapshot{RunID: "a"}
	p.PublishSnapshot(snap)
	p.PublishSnapshot(snap)
	p.PublishSnapshot(nil)
	assert.Len(t, p.snapshotCh, 1)

	for i := 0; i < 10; i++ {
		p.PublishSnapshot(&game.Snapshot{Tick: uint64(i)})
	}
	assert.Len(t, p.snapshotCh, cap(p.snapshotCh))
	assert.Equal(t, int64(3), p.Stats().Dropped)
}

func TestSpectatorFollowsEngine(t *testing.T) {
	engine, err := game.NewEngine(game.EngineConfig{Rules: game.DefaultRules(), Seed: 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "feed.sock")
	pub := NewPublisher(path)
	pub.SetHello(HelloFromRules(engine.Rules(), 3))
	pub.Attach(engine)
	require.NoError(t, pub.Start())
	t.Cleanup(pub.Stop)

	sub := NewSubscriber(path)
	connected := make(chan struct{}, 1)
	sub.OnConnect(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	require.NoError(t, sub.Start())
	t.Cleanup(sub.Stop)

	hello, ok := sub.WaitForHello(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, engine.Rules().Grid.Width, hello.Width)
	<-connected

	// The greeting carries the current intro snapshot
	require.Eventually(t, func() bool {
		snap := sub.Latest()
		return snap != nil && snap.Phase == game.PhaseIntro
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return pub.Stats().Clients == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, engine.StartRun())
	engine.Tick()
	engine.Tick()
	want := engine.GetSnapshot()

	require.Eventually(t, func() bool {
		snap := sub.Latest()
		return snap != nil && snap.Tick == want.Tick
	}, 2*time.Second, 10*time.Millisecond)

	got := sub.Latest()
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, game.PhasePlaying, got.Phase)
	assert.Equal(t, want.Segments, got.Segments)
	assert.Equal(t, want.Apple, got.Apple)
	assert.True(t, sub.IsConnected())
	assert.GreaterOrEqual(t, sub.Stats().Received, int64(2))
}

func TestSubscriberReconnectsAfterPublisherStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.sock")
	pub := NewPublisher(path)
	require.NoError(t, pub.Start())

	sub := NewSubscriber(path)
	disconnected := make(chan struct{}, 1)
	sub.OnDisconnect(func() {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})
	require.NoError(t, sub.Start())
	t.Cleanup(sub.Stop)

	_, ok := sub.WaitForHello(2 * time.Second)
	require.True(t, ok)

	pub.Stop()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never noticed the publisher stopping")
	}

	pub = NewPublisher(path)
	pub.SetHello(HelloMessage{Width: 4, Height: 4})
	require.NoError(t, pub.Start())
	t.Cleanup(pub.Stop)

	hello, ok := sub.WaitForHello(3 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 4, hello.Width)
	assert.GreaterOrEqual(t, sub.Stats().Reconnects, int64(1))
}
