package api

import (
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"bernar-snake/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics with bounded cardinality (no per-client labels to prevent DoS)
var (
	// Game engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snake_tick_duration_seconds",
		Help:    "Time spent in a simulation step",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})

	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_steps_total",
		Help: "Accepted simulation steps",
	})

	applesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snake_apples_total",
		Help: "Apples consumed across all runs",
	})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snake_runs_finished_total",
		Help: "Runs that reached a terminal phase",
	}, []string{"outcome"}) // Bounded: "won", "wall", "self"

	phaseGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_phase",
		Help: "Current phase (0=intro 1=playing 2=milestone_pause 3=game_over 4=won)",
	})

	snakeLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_length",
		Help: "Current snake length in segments",
	})

	tickInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snake_tick_interval_seconds",
		Help: "Current delay between steps",
	})

	// Event log metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	wsCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_commands_total",
		Help: "Commands received over WebSocket",
	}, []string{"result"}) // Bounded: "queued", "dropped", "invalid"
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be loopback in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server.
// It binds to loopback only unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Info().Msg("📊 Debug server disabled")
		return nil
	}

	if !isLoopbackAddr(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Warn().Str("requested", cfg.ListenAddr).Msg("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	var handler http.Handler = debugMux()
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, handler)
	}

	go func() {
		log.Info().
			Str("pprof", "http://"+cfg.ListenAddr+"/debug/pprof/").
			Str("metrics", "http://"+cfg.ListenAddr+"/metrics").
			Msg("📊 Debug server starting")

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Warn().Err(err).Msg("⚠️ Debug server error")
		}
	}()

	return nil
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func isLoopbackAddr(addr string) bool {
	for _, prefix := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordStep records one engine step. Registered as an engine step listener.
func RecordStep(res game.StepResult, duration time.Duration) {
	tickDuration.Observe(duration.Seconds())

	snap := res.Snapshot
	phaseGauge.Set(float64(snap.Phase))
	snakeLength.Set(float64(snap.Length()))
	tickInterval.Set((time.Duration(snap.TickIntervalMs) * time.Millisecond).Seconds())

	if res.Mutated {
		stepsTotal.Inc()
	}
	for _, ev := range res.Events {
		switch ev.Type {
		case game.EventTypeAppleConsumed:
			applesTotal.Inc()
		case game.EventTypeWon:
			runsFinished.WithLabelValues("won").Inc()
		case game.EventTypeGameOver:
			runsFinished.WithLabelValues(res.Collision.String()).Inc()
		}
	}
}

// UpdatePhase sets the phase gauge outside of steps (start, ack, restart)
func UpdatePhase(p game.Phase) {
	phaseGauge.Set(float64(p))
}

// UpdateEventLogStats mirrors the event log counters into gauges
func UpdateEventLogStats(stats game.EventLogStats) {
	eventLogTotal.Set(float64(stats.Total))
	eventLogDropped.Set(float64(stats.Dropped))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit_read", "rate_limit_control", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// RecordWSCommand counts an incoming command by result
func RecordWSCommand(result string) {
	wsCommandsTotal.WithLabelValues(result).Inc()
}

// metricsMiddleware records latency per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// requestLogger logs one zerolog line per request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("ip", GetClientIP(r)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("🌐 request")
	})
}
