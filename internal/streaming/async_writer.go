package streaming

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxConsecutiveErrors before the output is considered lost
	MaxConsecutiveErrors = 10
	// ErrorResetInterval clears the error count after this long without errors
	ErrorResetInterval = 5 * time.Second
	// BackpressureWarningThreshold is a write time, in frame intervals, worth a warning
	BackpressureWarningThreshold = 2.0
	// BackpressureLogInterval rate-limits backpressure warnings
	BackpressureLogInterval = 5 * time.Second
	// starvingAfter empty ticks logs that the frame loop is too slow
	starvingAfter = 30
)

// WriterStats counts frames delivered to the encoder
type WriterStats struct {
	FramesWritten      uint64      `json:"framesWritten"`
	WriteErrors        uint64      `json:"writeErrors"`
	ConsecutiveErrors  int32       `json:"consecutiveErrors"`
	OutputLost         bool        `json:"outputLost"`
	AvgWriteTimeMs     float64     `json:"avgWriteTimeMs"`
	MaxWriteTimeMs     float64     `json:"maxWriteTimeMs"`
	BackpressureEvents int64       `json:"backpressureEvents"`
	Buffer             BufferStats `json:"buffer"`
}

// AsyncFrameWriter drains a ring buffer into FFmpeg's stdin at a steady
// rate so encoder stalls never block the frame loop.
type AsyncFrameWriter struct {
	ringBuffer *FrameRingBuffer
	pipe       io.Writer
	stopChan   chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	framesWritten      atomic.Uint64
	writeErrors        atomic.Uint64
	avgWriteTimeNs     atomic.Int64
	maxWriteTimeNs     atomic.Int64
	backpressureEvents atomic.Int64

	consecutiveErrors atomic.Int32
	outputLost        atomic.Bool

	mu                  sync.Mutex // guards the fields below
	lastErrorTime       time.Time
	lastBackpressureLog time.Time
	onOutputLost        func()
}

// NewAsyncFrameWriter creates a writer from ringBuffer to pipe
func NewAsyncFrameWriter(ringBuffer *FrameRingBuffer, pipe io.Writer) *AsyncFrameWriter {
	return &AsyncFrameWriter{
		ringBuffer: ringBuffer,
		pipe:       pipe,
	}
}

// SetOnOutputLost registers a callback run once, on its own goroutine,
// after MaxConsecutiveErrors failed writes
func (w *AsyncFrameWriter) SetOnOutputLost(callback func()) {
	w.mu.Lock()
	w.onOutputLost = callback
	w.mu.Unlock()
}

// IsOutputLost reports whether the writer gave up on the pipe
func (w *AsyncFrameWriter) IsOutputLost() bool {
	return w.outputLost.Load()
}

// Start pulls one frame per tick at fps
func (w *AsyncFrameWriter) Start(fps int) {
	if fps <= 0 || !w.running.CompareAndSwap(false, true) {
		return
	}

	w.outputLost.Store(false)
	w.consecutiveErrors.Store(0)
	w.stopChan = make(chan struct{})
	w.wg.Add(1)

	go w.loop(time.Second / time.Duration(fps))
}

// Stop halts the writer and waits for an in-flight write
func (w *AsyncFrameWriter) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopChan)
	w.wg.Wait()
	log.Debug().Uint64("frames", w.framesWritten.Load()).Msg("📡 Frame writer stopped")
}

// IsRunning reports whether the writer loop is active
func (w *AsyncFrameWriter) IsRunning() bool {
	return w.running.Load()
}

// Stats returns writer counters
func (w *AsyncFrameWriter) Stats() WriterStats {
	return WriterStats{
		FramesWritten:      w.framesWritten.Load(),
		WriteErrors:        w.writeErrors.Load(),
		ConsecutiveErrors:  w.consecutiveErrors.Load(),
		OutputLost:         w.outputLost.Load(),
		AvgWriteTimeMs:     float64(w.avgWriteTimeNs.Load()) / 1e6,
		MaxWriteTimeMs:     float64(w.maxWriteTimeNs.Load()) / 1e6,
		BackpressureEvents: w.backpressureEvents.Load(),
		Buffer:             w.ringBuffer.Stats(),
	}
}

func (w *AsyncFrameWriter) loop(frameInterval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", frameInterval).Msg("📡 Frame writer started")

	consecutiveEmpty := 0
	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
		}

		if w.outputLost.Load() {
			continue
		}

		frame := w.ringBuffer.TryRead()
		if frame == nil {
			consecutiveEmpty++
			if consecutiveEmpty == starvingAfter {
				log.Warn().Msg("⚠️ Frame writer starving, frame loop may be too slow")
			}
			continue
		}
		consecutiveEmpty = 0

		start := time.Now()
		_, err := w.pipe.Write(frame)
		writeTime := time.Since(start)

		if err != nil {
			w.recordError(err)
			continue
		}
		w.recordWrite(writeTime, frameInterval)
	}
}

func (w *AsyncFrameWriter) recordError(err error) {
	w.writeErrors.Add(1)
	errCount := w.consecutiveErrors.Add(1)
	if errCount <= 5 {
		log.Error().Err(err).Int32("count", errCount).Msg("❌ Frame write failed")
	}

	w.mu.Lock()
	w.lastErrorTime = time.Now()
	callback := w.onOutputLost
	w.mu.Unlock()

	if errCount >= MaxConsecutiveErrors && w.outputLost.CompareAndSwap(false, true) {
		log.Error().Int32("errors", errCount).Msg("🔴 Encoder output lost")
		if callback != nil {
			go callback()
		}
	}
}

func (w *AsyncFrameWriter) recordWrite(writeTime, frameInterval time.Duration) {
	if w.consecutiveErrors.Load() > 0 {
		w.mu.Lock()
		lastErr := w.lastErrorTime
		w.mu.Unlock()
		if time.Since(lastErr) > ErrorResetInterval {
			w.consecutiveErrors.Store(0)
			log.Info().Msg("✅ Encoder output recovered")
		}
	}

	w.framesWritten.Add(1)

	// Exponential moving average
	avg := w.avgWriteTimeNs.Load()
	w.avgWriteTimeNs.Store((avg*9 + writeTime.Nanoseconds()) / 10)
	if writeTime.Nanoseconds() > w.maxWriteTimeNs.Load() {
		w.maxWriteTimeNs.Store(writeTime.Nanoseconds())
	}

	if float64(writeTime)/float64(frameInterval) < BackpressureWarningThreshold {
		return
	}
	w.backpressureEvents.Add(1)

	w.mu.Lock()
	shouldLog := time.Since(w.lastBackpressureLog) > BackpressureLogInterval
	if shouldLog {
		w.lastBackpressureLog = time.Now()
	}
	w.mu.Unlock()

	if shouldLog {
		log.Warn().Dur("write", writeTime).Dur("target", frameInterval).
			Msg("⚠️ Encoder backpressure, consider lowering SNAKE_STREAM_BITRATE")
	}
}
