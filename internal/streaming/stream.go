// Package streaming encodes rendered snapshots with FFmpeg, to a file or a
// live RTMP ingest.
package streaming

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/render"

	"github.com/rs/zerolog/log"
)

// ErrAlreadyStreaming is returned by Start on a running manager
var ErrAlreadyStreaming = errors.New("already streaming")

const (
	stopGracePeriod = 5 * time.Second
	killGracePeriod = 3 * time.Second
)

// StreamStats is a point-in-time view for monitoring
type StreamStats struct {
	Streaming      bool        `json:"streaming"`
	Output         string      `json:"output"`
	Resolution     string      `json:"resolution"`
	FPS            int         `json:"fps"`
	FramesQueued   uint64      `json:"framesQueued"`
	FramesRendered uint64      `json:"framesRendered"`
	Uptime         string      `json:"uptime"`
	Writer         WriterStats `json:"writer"`
}

// StreamManager renders the source's snapshots at a fixed frame rate and
// pipes them into FFmpeg. Frames are only re-rendered when the snapshot
// changes; otherwise the last frame is repeated.
type StreamManager struct {
	source   SnapshotSource
	renderer *render.FrameRenderer
	cfg      config.StreamConfig
	grid     game.Grid
	width    int
	height   int

	mu        sync.Mutex
	streaming bool
	ffmpeg    *exec.Cmd
	videoPipe io.WriteCloser
	audioPipe *os.File
	exited    chan struct{}
	exitErr   error
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startTime time.Time

	ring   *FrameRingBuffer
	writer *AsyncFrameWriter
	mixer  *AudioMixer

	// Owned by the frame loop
	lastSnap   *game.Snapshot
	frame      []byte
	gridWarned bool

	framesQueued   atomic.Uint64
	framesRendered atomic.Uint64
}

// NewStreamManager prepares a manager for a board of the given grid
func NewStreamManager(source SnapshotSource, renderer *render.FrameRenderer, grid game.Grid, cfg config.StreamConfig) *StreamManager {
	if cfg.FPS <= 0 {
		cfg.FPS = config.DefaultStream().FPS
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	w, h := renderer.Size(grid)
	return &StreamManager{
		source:   source,
		renderer: renderer,
		cfg:      cfg,
		grid:     grid,
		width:    w,
		height:   h,
		frame:    make([]byte, w*h*4),
	}
}

// Start launches FFmpeg and the frame loop
func (s *StreamManager) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming {
		return ErrAlreadyStreaming
	}

	useAudio := audioPipeSupported()
	cmd := exec.Command(s.cfg.FFmpegPath, s.ffmpegArgs(useAudio)...)
	setPlatformProcessGroup(cmd)
	cmd.Stderr = os.Stderr

	videoPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create video pipe: %w", err)
	}

	var audioReader, audioWriter *os.File
	if useAudio {
		audioReader, audioWriter, err = os.Pipe()
		if err != nil {
			videoPipe.Close()
			return fmt.Errorf("create audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioReader} // fd 3
	}

	if err := cmd.Start(); err != nil {
		videoPipe.Close()
		if useAudio {
			audioReader.Close()
			audioWriter.Close()
		}
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	if audioReader != nil {
		audioReader.Close() // the child holds its own copy
	}

	s.ffmpeg = cmd
	s.videoPipe = videoPipe
	s.audioPipe = audioWriter
	s.exited = make(chan struct{})
	s.stopChan = make(chan struct{})
	s.streaming = true
	s.startTime = time.Now()
	s.lastSnap = nil
	s.framesQueued.Store(0)
	s.framesRendered.Store(0)

	s.ring = NewFrameRingBuffer(len(s.frame))
	s.writer = NewAsyncFrameWriter(s.ring, videoPipe)
	s.writer.SetOnOutputLost(s.Stop)
	s.mixer = nil
	if useAudio {
		s.mixer = NewAudioMixer(AudioConfig{
			FPS:         s.cfg.FPS,
			MusicPath:   s.cfg.MusicPath,
			MusicVolume: s.cfg.MusicVolume,
			SFXVolume:   s.cfg.SFXVolume,
		})
	}

	go s.watchProcess(cmd, s.exited)

	s.writer.Start(s.cfg.FPS)
	s.wg.Add(1)
	go s.frameLoop(s.stopChan)
	if s.mixer != nil {
		s.wg.Add(1)
		go s.audioLoop(s.stopChan, audioWriter)
	}

	log.Info().
		Str("output", s.cfg.Output).
		Str("resolution", fmt.Sprintf("%dx%d", s.width, s.height)).
		Int("fps", s.cfg.FPS).
		Int("bitrate", s.cfg.Bitrate).
		Bool("audio", useAudio).
		Msg("🎬 Stream started")
	return nil
}

// Stop ends the frame loop and lets FFmpeg finalize the output.
// FFmpeg is terminated, then killed, if it does not exit in time.
func (s *StreamManager) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaming {
		return
	}
	s.streaming = false
	log.Info().Msg("🛑 Stopping stream...")

	close(s.stopChan)
	// Closing first unblocks an audio write stuck on a full pipe
	if s.audioPipe != nil {
		s.audioPipe.Close()
	}
	s.wg.Wait()
	s.writer.Stop()
	if s.mixer != nil {
		s.mixer.Close()
	}

	// EOF on stdin makes FFmpeg flush and write the trailer
	s.videoPipe.Close()

	select {
	case <-s.exited:
	case <-time.After(stopGracePeriod):
		log.Warn().Msg("⚠️ FFmpeg slow to exit, terminating")
		terminateProcess(s.ffmpeg)
		select {
		case <-s.exited:
		case <-time.After(killGracePeriod):
			log.Warn().Msg("🔪 Killing FFmpeg")
			killProcess(s.ffmpeg)
			<-s.exited
		}
	}

	if s.exitErr != nil {
		log.Warn().Err(s.exitErr).Msg("⚠️ FFmpeg exited with error")
	}
	log.Info().Uint64("frames", s.writer.Stats().FramesWritten).Msg("✅ Stream stopped")
}

// IsStreaming reports whether FFmpeg is running
func (s *StreamManager) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Stats returns streaming counters
func (s *StreamManager) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := StreamStats{
		Streaming:      s.streaming,
		Output:         s.cfg.Output,
		Resolution:     fmt.Sprintf("%dx%d", s.width, s.height),
		FPS:            s.cfg.FPS,
		FramesQueued:   s.framesQueued.Load(),
		FramesRendered: s.framesRendered.Load(),
		Uptime:         "0s",
	}
	if s.streaming {
		stats.Uptime = time.Since(s.startTime).Round(time.Second).String()
	}
	if s.writer != nil {
		stats.Writer = s.writer.Stats()
	}
	return stats
}

// watchProcess records FFmpeg's exit and stops the manager if it died early
func (s *StreamManager) watchProcess(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	s.exitErr = err
	close(exited)

	if s.IsStreaming() {
		log.Error().Err(err).Msg("❌ FFmpeg exited unexpectedly")
		go s.Stop()
	}
}

func (s *StreamManager) frameLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.nextFrame()
		}
	}
}

// nextFrame re-renders when the snapshot changed and queues the frame
func (s *StreamManager) nextFrame() bool {
	snap := s.source.GetSnapshot()
	if snap == nil {
		return false
	}

	if snap != s.lastSnap {
		if snap.Grid != s.grid {
			if !s.gridWarned {
				log.Warn().Int("width", snap.Grid.Width).Int("height", snap.Grid.Height).
					Msg("⚠️ Board size changed, restart the streamer")
				s.gridWarned = true
			}
			return false
		}
		if s.mixer != nil {
			s.mixer.QueueHighlight(game.HighlightBetween(s.lastSnap, snap))
		}
		copyImage(s.frame, s.renderer.Render(*snap))
		s.lastSnap = snap
		s.framesRendered.Add(1)
	}

	if s.ring.TryWrite(s.frame) {
		s.framesQueued.Add(1)
		return true
	}
	return false
}

func (s *StreamManager) audioLoop(stop <-chan struct{}, pipe io.Writer) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := pipe.Write(s.mixer.GenerateFrame()); err != nil {
				log.Warn().Err(err).Msg("⚠️ Audio pipe closed")
				return
			}
		}
	}
}

// ffmpegArgs builds the encoder command line. Live outputs get low-latency
// tuning and a silent track when no audio pipe is available.
func (s *StreamManager) ffmpegArgs(useAudio bool) []string {
	live := isLiveOutput(s.cfg.Output)
	fps := s.cfg.FPS

	args := []string{
		"-y",
		"-loglevel", "warning",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.width, s.height),
		"-r", fmt.Sprintf("%d", fps),
		"-i", "pipe:0",
	}

	hasAudio := true
	switch {
	case useAudio:
		args = append(args,
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", audioSampleRate),
			"-ac", fmt.Sprintf("%d", audioChannels),
			"-i", "pipe:3",
		)
	case live:
		// Most ingests reject video-only streams
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", audioSampleRate),
		)
	default:
		hasAudio = false
	}

	// yuv420p needs even dimensions
	args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")

	args = append(args, "-c:v", "libx264")
	if live {
		args = append(args, "-preset", "ultrafast", "-tune", "zerolatency")
	} else {
		args = append(args, "-preset", "veryfast")
	}
	if s.cfg.Bitrate > 0 {
		args = append(args,
			"-b:v", fmt.Sprintf("%dk", s.cfg.Bitrate),
			"-maxrate", fmt.Sprintf("%dk", s.cfg.Bitrate),
			"-bufsize", fmt.Sprintf("%dk", s.cfg.Bitrate*2),
		)
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-g", fmt.Sprintf("%d", fps*2),
		"-keyint_min", fmt.Sprintf("%d", fps),
		"-sc_threshold", "0",
		"-profile:v", "main",
	)

	if hasAudio {
		args = append(args,
			"-c:a", "aac",
			"-b:a", "128k",
			"-ar", fmt.Sprintf("%d", audioSampleRate),
			"-ac", fmt.Sprintf("%d", audioChannels),
			"-map", "0:v",
			"-map", "1:a",
			"-shortest",
		)
	} else {
		args = append(args, "-an")
	}

	if live {
		args = append(args, "-f", "flv")
	}
	return append(args, s.cfg.Output)
}

// isLiveOutput reports whether out is an RTMP ingest rather than a file
func isLiveOutput(out string) bool {
	lower := strings.ToLower(out)
	return strings.HasPrefix(lower, "rtmp://") || strings.HasPrefix(lower, "rtmps://")
}

// copyImage writes img into buf as packed RGBA
func copyImage(buf []byte, img image.Image) {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 {
		copy(buf, rgba.Pix)
		return
	}

	bounds := img.Bounds()
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if idx+3 >= len(buf) {
				return
			}
			r, g, b, a := img.At(x, y).RGBA()
			buf[idx] = uint8(r >> 8)
			buf[idx+1] = uint8(g >> 8)
			buf[idx+2] = uint8(b >> 8)
			buf[idx+3] = uint8(a >> 8)
			idx += 4
		}
	}
}
