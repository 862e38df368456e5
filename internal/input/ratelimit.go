package input

import (
	"sync"
	"time"
)

// RateLimiter implements per-client command rate limiting
type RateLimiter struct {
	mu           sync.Mutex
	clientCounts map[string]*clientLimit
	config       RateLimitConfig

	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type clientLimit struct {
	count     int
	windowEnd time.Time
	lastCmd   time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// MaxPerWindow is max commands per window
	MaxPerWindow int
	// WindowDuration is the window size
	WindowDuration time.Duration
	// CooldownDuration is minimum time between commands
	CooldownDuration time.Duration
}

// DefaultRateLimitConfig allows roughly one turn per tick at full speed
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     20,                    // 20 commands
	WindowDuration:   2 * time.Second,       // per 2 seconds
	CooldownDuration: 50 * time.Millisecond, // half the fastest tick interval
}

// NewRateLimiter creates a new rate limiter and starts its cleanup goroutine
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clientCounts: make(map[string]*clientLimit),
		config:       cfg,
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a client can execute a control command
func (rl *RateLimiter) Allow(client string) bool {
	return rl.allow(client, true)
}

// AllowTurn checks a direction change. Turns count against the window but
// skip the cooldown, so a quick two-key turn inside one tick gets through.
func (rl *RateLimiter) AllowTurn(client string) bool {
	return rl.allow(client, false)
}

func (rl *RateLimiter) allow(client string, cooldown bool) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	limit, exists := rl.clientCounts[client]
	if !exists {
		rl.clientCounts[client] = &clientLimit{
			count:     1,
			windowEnd: now.Add(rl.config.WindowDuration),
			lastCmd:   now,
		}
		return true
	}

	// Check cooldown
	if cooldown && now.Sub(limit.lastCmd) < rl.config.CooldownDuration {
		return false
	}

	// Check/reset window
	if now.After(limit.windowEnd) {
		limit.count = 1
		limit.windowEnd = now.Add(rl.config.WindowDuration)
		limit.lastCmd = now
		return true
	}

	// Check count
	if limit.count >= rl.config.MaxPerWindow {
		return false
	}

	limit.count++
	limit.lastCmd = now
	return true
}

// Forget drops a client's state, e.g. when its connection closes
func (rl *RateLimiter) Forget(client string) {
	rl.mu.Lock()
	delete(rl.clientCounts, client)
	rl.mu.Unlock()
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// cleanup removes idle entries every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		cutoff := rl.now().Add(-5 * time.Minute)
		for key, limit := range rl.clientCounts {
			if limit.lastCmd.Before(cutoff) {
				delete(rl.clientCounts, key)
			}
		}
		rl.mu.Unlock()
	}
}
