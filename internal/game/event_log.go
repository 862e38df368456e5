package game

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Circular buffer size
	MaxEventsPerSec      = 2000                   // Global rate limit
	MaxEventsPerSource   = 50                     // Per-source rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	SourceLimiterCleanup = 5 * time.Minute        // Cleanup interval for source limiters
)

// EventLog provides bounded, rate-limited event logging with backpressure.
// Simulation events carry an empty Source and are only subject to the
// global limiter; client-originated events are also limited per source.
type EventLog struct {
	// Circular buffer (lock-free SPSC pattern)
	buffer    [EventBufferSize]Event
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position

	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	writer   *bufio.Writer
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// EventLogStats is a point-in-time view for monitoring
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
	Path    string `json:"path"`
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer goroutine. An empty path keeps events in
// memory only (counted, never written).
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
		el.writer = bufio.NewWriter(file)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		defer el.fileMu.Unlock()
		if el.file != nil {
			if err := el.writer.Flush(); err != nil {
				log.Warn().Err(err).Str("path", el.filePath).Msg("⚠️ Event log flush failed")
			}
			el.file.Close()
		}
	})
}

// Emit adds an event with rate limiting.
// Returns false if rate limited or not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	if event.Source != "" {
		if !el.getSourceLimiter(event.Source).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)

	// Buffer full: drop oldest (rolling window)
	if head-tail >= EventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%EventBufferSize] = event

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitAll emits events in order and returns how many were accepted
func (el *EventLog) EmitAll(events []Event) int {
	n := 0
	for _, e := range events {
		if el.Emit(e) {
			n++
		}
	}
	return n
}

func (el *EventLog) getSourceLimiter(source string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.sourceLimiters.Load(source); ok {
		e := entry.(*sourceLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &sourceLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/5),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.sourceLimiters.LoadOrStore(source, entry)
	return actual.(*sourceLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupSourceLimiters()
		}
	}
}

func (el *EventLog) cleanupSourceLimiters() {
	cutoff := time.Now().Add(-SourceLimiterCleanup).UnixNano()
	el.sourceLimiters.Range(func(key, value interface{}) bool {
		if value.(*sourceLimiterEntry).lastUsed.Load() < cutoff {
			el.sourceLimiters.Delete(key)
		}
		return true
	})
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, el.buffer[i%EventBufferSize])
	}

	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}

	return batch
}

// flushBatch writes events as newline-delimited JSON
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.writer == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.writer.Write(data)
		el.writer.WriteByte('\n')
	}
	if err := el.writer.Flush(); err != nil {
		log.Warn().Err(err).Str("path", el.filePath).Msg("⚠️ Event log write failed")
	}
}

// Stats returns metrics for monitoring
func (el *EventLog) Stats() EventLogStats {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	return EventLogStats{
		Total:   atomic.LoadUint64(&el.totalCount),
		Dropped: atomic.LoadUint64(&el.droppedCount),
		Pending: head - tail,
		Running: el.running.Load(),
		Path:    el.filePath,
	}
}
