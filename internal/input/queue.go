package input

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandQueue decouples network readers from the engine. Exactly one
// consumer goroutine applies commands, so they reach the game in arrival order.
type CommandQueue struct {
	commands chan Command
	handler  *Handler
	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	accepted    atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Number of commands to buffer (default: 256)
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
	}
}

// NewCommandQueue creates a new command queue
func NewCommandQueue(handler *Handler, config QueueConfig) *CommandQueue {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	return &CommandQueue{
		commands: make(chan Command, config.BufferSize),
		handler:  handler,
		stopChan: make(chan struct{}),
	}
}

// Start launches the consumer
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return // Already running
	}

	log.Info().Int("buffer", cap(q.commands)).Msg("🚀 CommandQueue starting")

	q.wg.Add(1)
	go q.consume()
}

// Stop drains pending commands and shuts the consumer down
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return // Not running
	}

	close(q.stopChan)
	q.wg.Wait()

	log.Info().
		Uint64("enqueued", q.enqueued.Load()).
		Uint64("processed", q.processed.Load()).
		Uint64("dropped", q.dropped.Load()).
		Msg("📊 CommandQueue stopped")
}

// Enqueue adds a command to the queue (non-blocking).
// Returns true if enqueued, false if queue is full (command dropped).
func (q *CommandQueue) Enqueue(cmd Command) bool {
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = time.Now()
	}

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		// Queue full - drop command to prevent backpressure
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			log.Warn().Str("source", cmd.Source).Uint64("dropped", dropped).Msg("⚠️ CommandQueue full, dropping commands")
		}
		return false
	}
}

func (q *CommandQueue) consume() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			for {
				select {
				case cmd := <-q.commands:
					q.process(cmd)
				default:
					return
				}
			}
		case cmd := <-q.commands:
			q.process(cmd)
		}
	}
}

func (q *CommandQueue) process(cmd Command) {
	waitTime := time.Since(cmd.ReceivedAt)
	q.updateAvgWaitTime(waitTime)

	if waitTime > 100*time.Millisecond {
		log.Warn().Str("source", cmd.Source).Dur("wait", waitTime).Msg("⚠️ Command waited in queue")
	}

	if q.handler.ProcessCommand(cmd) {
		q.accepted.Add(1)
	}
	q.processed.Add(1)
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1 (smooth over ~10 samples)
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Accepted:       q.accepted.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(len(q.commands)),
		BufferSize:     uint64(cap(q.commands)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.commands)) / float64(cap(q.commands)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Accepted       uint64  `json:"accepted"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
