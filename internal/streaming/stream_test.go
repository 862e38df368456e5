package streaming

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type stubSource struct {
	snap atomic.Pointer[game.Snapshot]
}

func (s *stubSource) GetSnapshot() *game.Snapshot { return s.snap.Load() }

func testEngine(t *testing.T) *game.Engine {
	t.Helper()
	rules := game.DefaultRules()
	rules.Grid = game.Grid{Width: 10, Height: 8}
	e, err := game.NewEngine(game.EngineConfig{Rules: rules, Seed: 5})
	require.NoError(t, err)
	return e
}

func testRenderer() *render.FrameRenderer {
	return render.NewFrameRenderer(config.RenderConfig{CellPx: 4, MarginPx: 2})
}

func containsSeq(args []string, seq ...string) bool {
	for i := 0; i+len(seq) <= len(args); i++ {
		match := true
		for j, s := range seq {
			if args[i+j] != s {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestFrameRingBuffer(t *testing.T) {
	rb := NewFrameRingBuffer(4)

	assert.False(t, rb.TryWrite([]byte{1, 2, 3}), "wrong size")
	assert.Nil(t, rb.TryRead())

	for i := 0; i < BufferSize-1; i++ {
		require.True(t, rb.TryWrite([]byte{byte(i), 0, 0, 0}))
	}
	assert.Equal(t, BufferSize-1, rb.Available())
	assert.False(t, rb.TryWrite([]byte{99, 0, 0, 0}), "one slot stays empty")

	assert.Equal(t, byte(0), rb.TryRead()[0])
	assert.Equal(t, byte(1), rb.TryRead()[0])
	assert.True(t, rb.TryWrite([]byte{42, 0, 0, 0}))

	stats := rb.Stats()
	assert.Equal(t, uint64(BufferSize), stats.Written)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(2), stats.Read)
	assert.Equal(t, BufferSize-2, stats.Available)

	rb.Reset()
	assert.Zero(t, rb.Available())
	assert.Equal(t, BufferStats{}, rb.Stats())
}

func TestAsyncFrameWriterDrainsBuffer(t *testing.T) {
	rb := NewFrameRingBuffer(8)
	for i := 0; i < 3; i++ {
		require.True(t, rb.TryWrite(bytes.Repeat([]byte{byte(i + 1)}, 8)))
	}

	var out syncBuffer
	w := NewAsyncFrameWriter(rb, &out)
	w.Start(200)
	w.Start(200) // no-op
	assert.True(t, w.IsRunning())

	require.Eventually(t, func() bool { return w.Stats().FramesWritten == 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())

	assert.Equal(t, 24, out.Len())
	assert.Equal(t, byte(3), out.buf.Bytes()[23])
	assert.Equal(t, uint64(3), w.Stats().Buffer.Read)
}

func TestAsyncFrameWriterDetectsLostOutput(t *testing.T) {
	rb := NewFrameRingBuffer(2)
	for i := 0; i < BufferSize-1; i++ {
		require.True(t, rb.TryWrite([]byte{0, 0}))
	}

	lost := make(chan struct{})
	w := NewAsyncFrameWriter(rb, failingWriter{})
	w.SetOnOutputLost(func() { close(lost) })
	w.Start(1000)
	defer w.Stop()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("output lost callback never ran")
	}
	assert.True(t, w.IsOutputLost())
	assert.GreaterOrEqual(t, w.Stats().WriteErrors, uint64(MaxConsecutiveErrors))
	assert.Zero(t, w.Stats().FramesWritten)
}

func TestAudioMixer(t *testing.T) {
	m := NewAudioMixer(AudioConfig{FPS: 30, SFXVolume: 0.5})
	assert.Equal(t, 44100/30*4, m.BytesPerFrame())

	silent := m.GenerateFrame()
	assert.Len(t, silent, m.BytesPerFrame())
	assert.Equal(t, make([]byte, m.BytesPerFrame()), silent)

	m.QueueHighlight(game.HighlightNone)
	assert.Zero(t, m.ActiveSounds())

	m.QueueHighlight(game.HighlightApple)
	assert.Equal(t, 1, m.ActiveSounds())
	assert.NotEqual(t, silent, m.GenerateFrame())

	for i := 0; i < 10 && m.ActiveSounds() > 0; i++ {
		m.GenerateFrame()
	}
	assert.Zero(t, m.ActiveSounds())

	for i := 0; i < maxActiveSounds+3; i++ {
		m.QueueHighlight(game.HighlightWon)
	}
	assert.Equal(t, maxActiveSounds, m.ActiveSounds())
	m.Close()
}

func TestMusicPlayerMissingFileIsSilent(t *testing.T) {
	mp := NewMusicPlayer(filepath.Join(t.TempDir(), "missing.ogg"), 0.5, 44100, 16)
	assert.False(t, mp.IsLoaded())

	buf := []int16{1, 2, 3, 4}
	assert.Equal(t, 4, mp.ReadSamples(buf))
	assert.Equal(t, []int16{0, 0, 0, 0}, buf)
	assert.NoError(t, mp.Close())
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{0.5, 16383},
		{-0.5, -16383},
		{1, 30691},  // soft clipped
		{10, 32767}, // hard clamp
		{-10, -32768},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floatToInt16(tt.in), "sample %v", tt.in)
	}
}

func TestFFmpegArgs(t *testing.T) {
	grid := game.Grid{Width: 10, Height: 8}
	cfg := config.DefaultStream()

	cfg.Output = "run.mp4"
	file := NewStreamManager(&stubSource{}, testRenderer(), grid, cfg)
	args := file.ffmpegArgs(false)
	assert.True(t, containsSeq(args, "-s", "44x36"))
	assert.True(t, containsSeq(args, "-r", "30", "-i", "pipe:0"))
	assert.True(t, containsSeq(args, "-preset", "veryfast"))
	assert.True(t, containsSeq(args, "-b:v", "2500k"))
	assert.Contains(t, args, "-an")
	assert.NotContains(t, args, "flv")
	assert.Equal(t, "run.mp4", args[len(args)-1])

	args = file.ffmpegArgs(true)
	assert.True(t, containsSeq(args, "-f", "s16le", "-ar", "44100", "-ac", "2", "-i", "pipe:3"))
	assert.True(t, containsSeq(args, "-map", "1:a"))
	assert.NotContains(t, args, "-an")

	cfg.Output = "rtmp://localhost/live/key"
	live := NewStreamManager(&stubSource{}, testRenderer(), grid, cfg)
	args = live.ffmpegArgs(false)
	assert.True(t, containsSeq(args, "-tune", "zerolatency"))
	assert.Contains(t, args, "anullsrc=channel_layout=stereo:sample_rate=44100")
	assert.True(t, containsSeq(args, "-f", "flv", "rtmp://localhost/live/key"))
}

func TestIsLiveOutput(t *testing.T) {
	assert.True(t, isLiveOutput("rtmp://a/b"))
	assert.True(t, isLiveOutput("RTMPS://a/b"))
	assert.False(t, isLiveOutput("/tmp/rtmp.mp4"))
	assert.False(t, isLiveOutput(""))
}

func TestNextFrameRendersOnlyOnChange(t *testing.T) {
	e := testEngine(t)
	src := &stubSource{}
	s := NewStreamManager(src, testRenderer(), e.Rules().Grid, config.DefaultStream())
	s.ring = NewFrameRingBuffer(len(s.frame))

	assert.False(t, s.nextFrame(), "no snapshot yet")

	src.snap.Store(e.GetSnapshot())
	assert.True(t, s.nextFrame())
	assert.True(t, s.nextFrame())
	assert.Equal(t, uint64(1), s.framesRendered.Load())
	assert.Equal(t, uint64(2), s.framesQueued.Load())
	assert.NotEqual(t, make([]byte, len(s.frame)), s.frame)

	e.StartRun()
	e.Tick()
	src.snap.Store(e.GetSnapshot())
	assert.True(t, s.nextFrame())
	assert.Equal(t, uint64(2), s.framesRendered.Load())

	other := *e.GetSnapshot()
	other.Grid = game.Grid{Width: 20, Height: 20}
	src.snap.Store(&other)
	assert.False(t, s.nextFrame())
	assert.True(t, s.gridWarned)
}

func TestCopyImageMatchesRender(t *testing.T) {
	e := testEngine(t)
	r := testRenderer()
	img := r.Render(*e.GetSnapshot())
	w, h := r.Size(e.Rules().Grid)

	buf := make([]byte, w*h*4)
	copyImage(buf, img)

	red, green, blue, alpha := img.At(w/2, h/2).RGBA()
	idx := (h/2*w + w/2) * 4
	assert.Equal(t, []byte{uint8(red >> 8), uint8(green >> 8), uint8(blue >> 8), uint8(alpha >> 8)}, buf[idx:idx+4])
}

func TestStartFailsWithoutFFmpeg(t *testing.T) {
	cfg := config.DefaultStream()
	cfg.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg")
	s := NewStreamManager(&stubSource{}, testRenderer(), game.Grid{Width: 10, Height: 8}, cfg)

	err := s.Start()
	assert.ErrorContains(t, err, "start ffmpeg")
	assert.False(t, s.IsStreaming())
	s.Stop() // no-op
	assert.False(t, s.Stats().Streaming)
}

// TestRealStreamWritesFile runs the whole pipeline against a real FFmpeg
func TestRealStreamWritesFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping real stream test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("FFmpeg not installed, skipping real stream test")
	}

	e := testEngine(t)
	require.True(t, e.StartRun())

	cfg := config.DefaultStream()
	cfg.Output = filepath.Join(t.TempDir(), "run.mp4")
	cfg.FPS = 15
	s := NewStreamManager(e, testRenderer(), e.Rules().Grid, cfg)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStreaming)

	for i := 0; i < 4; i++ {
		e.Tick()
		time.Sleep(250 * time.Millisecond)
	}
	s.Stop()

	stats := s.Stats()
	assert.False(t, stats.Streaming)
	assert.Greater(t, stats.Writer.FramesWritten, uint64(0))
	assert.GreaterOrEqual(t, stats.FramesRendered, uint64(4))

	info, err := os.Stat(cfg.Output)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
