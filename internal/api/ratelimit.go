package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Budget is a per-IP token bucket for one class of routes
type Budget struct {
	PerSecond float64
	Burst     int
}

// ControlBudget sizes the input budget from the fastest tick: two inputs per
// tick sustained, with room for a four-key burst.
func ControlBudget(minTick time.Duration) Budget {
	if minTick <= 0 {
		minTick = 100 * time.Millisecond
	}
	return Budget{PerSecond: 2 * float64(time.Second) / float64(minTick), Burst: 4}
}

// RateLimitConfig configures the per-IP HTTP limits.
// Reads and inputs draw from separate buckets so polling /api/state never
// starves /api/direction.
type RateLimitConfig struct {
	RequestsPerSecond float64       // read routes, per IP
	Burst             int           // read burst
	Control           Budget        // POST /api/*; zero value derives from the default tick floor
	CleanupInterval   time.Duration // idle buckets are dropped after twice this
}

// DefaultRateLimitConfig is used when the router gets no limiter
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	Control:           ControlBudget(100 * time.Millisecond),
	CleanupInterval:   5 * time.Minute,
}

type routeClass int

const (
	classRead routeClass = iota
	classControl
)

func (c routeClass) String() string {
	if c == classControl {
		return "control"
	}
	return "read"
}

// classify puts every POST under /api in the control budget
func classify(r *http.Request) routeClass {
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/") {
		return classControl
	}
	return classRead
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// bucketSet holds one bucket per IP for a single budget
type bucketSet struct {
	budget   Budget
	buckets  sync.Map // ip -> *ipBucket
	allowed  atomic.Uint64
	rejected atomic.Uint64
}

func (s *bucketSet) take(ip string, now time.Time) bool {
	v, ok := s.buckets.Load(ip)
	if !ok {
		fresh := &ipBucket{limiter: rate.NewLimiter(rate.Limit(s.budget.PerSecond), s.budget.Burst)}
		v, _ = s.buckets.LoadOrStore(ip, fresh)
	}
	b := v.(*ipBucket)
	b.lastSeen.Store(now.UnixNano())

	if b.limiter.AllowN(now, 1) {
		s.allowed.Add(1)
		return true
	}
	s.rejected.Add(1)
	return false
}

func (s *bucketSet) sweep(cutoff int64) {
	s.buckets.Range(func(key, value interface{}) bool {
		if value.(*ipBucket).lastSeen.Load() < cutoff {
			s.buckets.Delete(key)
		}
		return true
	})
}

// IPRateLimiter applies the read and control budgets per client IP
type IPRateLimiter struct {
	sets     [2]*bucketSet // indexed by routeClass
	sweepGap time.Duration
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates the limiter and starts its sweeper
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	if cfg.Control.PerSecond <= 0 || cfg.Control.Burst <= 0 {
		cfg.Control = DefaultRateLimitConfig.Control
	}

	rl := &IPRateLimiter{
		sweepGap: cfg.CleanupInterval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	rl.sets[classRead] = &bucketSet{budget: Budget{PerSecond: cfg.RequestsPerSecond, Burst: cfg.Burst}}
	rl.sets[classControl] = &bucketSet{budget: cfg.Control}

	go rl.sweepLoop()
	return rl
}

// Stop ends the sweeper goroutine
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.sweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			cutoff := rl.now().Add(-2 * rl.sweepGap).UnixNano()
			for _, s := range rl.sets {
				s.sweep(cutoff)
			}
		}
	}
}

// Allow takes a token from the read budget
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.sets[classRead].take(ip, rl.now())
}

// AllowControl takes a token from the input budget
func (rl *IPRateLimiter) AllowControl(ip string) bool {
	return rl.sets[classControl].take(ip, rl.now())
}

// Middleware rejects requests over the budget for their route class
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classify(r)
		if !rl.sets[class].take(GetClientIP(r), rl.now()) {
			RecordConnectionRejected("rate_limit_" + class.String())
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitStats counts decisions per budget
type RateLimitStats struct {
	ReadAllowed     uint64  `json:"readAllowed"`
	ReadRejected    uint64  `json:"readRejected"`
	ControlAllowed  uint64  `json:"controlAllowed"`
	ControlRejected uint64  `json:"controlRejected"`
	ControlPerSec   float64 `json:"controlPerSecond"`
}

// Stats returns counters for /api/stats
func (rl *IPRateLimiter) Stats() RateLimitStats {
	read, ctrl := rl.sets[classRead], rl.sets[classControl]
	return RateLimitStats{
		ReadAllowed:     read.allowed.Load(),
		ReadRejected:    read.rejected.Load(),
		ControlAllowed:  ctrl.allowed.Load(),
		ControlRejected: ctrl.rejected.Load(),
		ControlPerSec:   ctrl.budget.PerSecond,
	}
}

// GetClientIP extracts the client IP from an HTTP request.
// X-Forwarded-For is trusted, so run behind a proxy that sets it.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// connSlots caps concurrent WebSocket connections per IP
type connSlots struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
}

func newConnSlots(maxPerIP int) *connSlots {
	return &connSlots{open: make(map[string]int), maxPerIP: maxPerIP}
}

// acquire reserves a slot; a non-positive cap disables the limit
func (c *connSlots) acquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxPerIP > 0 && c.open[ip] >= c.maxPerIP {
		return false
	}
	c.open[ip]++
	return true
}

func (c *connSlots) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open[ip] <= 1 {
		delete(c.open, ip)
		return
	}
	c.open[ip]--
}

// OriginChecker matches request origins against the configured CORS list.
// Entries may be "*", an exact origin, or a host wildcard like "https://*.example.com".
type OriginChecker struct {
	allowed []string
}

// NewOriginChecker builds a checker. Localhost on any port is always allowed.
func NewOriginChecker(origins []string) *OriginChecker {
	return &OriginChecker{allowed: origins}
}

// Allowed reports whether origin may open a WebSocket
func (oc *OriginChecker) Allowed(origin string) bool {
	if origin == "" {
		// Non-browser clients do not send Origin
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if host := u.Hostname(); host == "localhost" || host == "127.0.0.1" {
		return true
	}

	for _, allowed := range oc.allowed {
		switch {
		case allowed == "*":
			return true
		case allowed == origin:
			return true
		case strings.Contains(allowed, "*"):
			prefix, suffix, _ := strings.Cut(allowed, "*")
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
