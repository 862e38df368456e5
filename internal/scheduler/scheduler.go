// Package scheduler drives a step function at a variable interval.
//
// The interval is not fixed: every step returns the delay before the next
// one, so a simulation that speeds up reschedules itself without the
// scheduler knowing why.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// StepFunc performs one step and returns the delay before the next.
// A non-positive delay reuses the previous interval.
type StepFunc func() time.Duration

// Scheduler is a cancellable single-timer loop
type Scheduler struct {
	step     StepFunc
	interval atomic.Int64 // nanoseconds

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool

	ticks atomic.Uint64
}

// New creates a scheduler that waits initial before the first step
func New(step StepFunc, initial time.Duration) *Scheduler {
	s := &Scheduler{
		step:     step,
		stopChan: make(chan struct{}),
	}
	s.interval.Store(int64(initial))
	return s
}

// Start launches the loop. Calling it twice is a no-op; a stopped scheduler
// cannot be restarted.
func (s *Scheduler) Start() {
	select {
	case <-s.stopChan:
		return
	default:
	}
	if s.running.CompareAndSwap(false, true) {
		s.wg.Add(1)
		go s.loop()
	}
}

// Stop halts the loop. A step already in progress completes before Stop
// returns, so there is never a partially applied step.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.running.Store(false)
	})
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Ticks returns the number of steps performed
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Interval returns the delay currently scheduled between steps
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
		}

		// Stop may have raced the timer; prefer stopping.
		select {
		case <-s.stopChan:
			return
		default:
		}

		next := s.step()
		s.ticks.Add(1)
		if next > 0 {
			s.interval.Store(int64(next))
		}
		timer.Reset(s.Interval())
	}
}
