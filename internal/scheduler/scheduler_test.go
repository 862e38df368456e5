package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerSteps(t *testing.T) {
	var calls atomic.Int32
	s := New(func() time.Duration {
		calls.Add(1)
		return 0
	}, 2*time.Millisecond)

	s.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	assert.False(t, s.Running())
	assert.Equal(t, uint64(calls.Load()), s.Ticks())
	assert.Equal(t, 2*time.Millisecond, s.Interval(), "non-positive return keeps the interval")
}

func TestSchedulerReArmsFromStep(t *testing.T) {
	var calls atomic.Int32
	s := New(func() time.Duration {
		n := calls.Add(1)
		return time.Duration(n) * time.Millisecond
	}, time.Millisecond)

	s.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, time.Duration(calls.Load())*time.Millisecond, s.Interval())
}

func TestSchedulerStopIsFinal(t *testing.T) {
	var calls atomic.Int32
	s := New(func() time.Duration {
		calls.Add(1)
		return 0
	}, time.Hour)

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	s.Start() // cannot restart
	assert.False(t, s.Running())
	assert.Equal(t, int32(0), calls.Load())
}

func TestSchedulerStopWaitsForStep(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	s := New(func() time.Duration {
		close(entered)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return time.Hour
	}, time.Millisecond)

	s.Start()
	<-entered
	s.Stop()
	assert.True(t, finished.Load(), "Stop returns only after the running step completes")
}
