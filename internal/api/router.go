package api

import (
	"io"
	"net/http"

	"bernar-snake/internal/game"
	"bernar-snake/internal/input"
	"bernar-snake/internal/ipc"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the scheduler.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.Snapshot
	// Stats returns lifetime counters
	Stats() game.EngineStats
	// EventLogStats returns event log counters
	EventLogStats() game.EventLogStats

	input.Controller
}

// FrameEncoder renders a snapshot as PNG
type FrameEncoder interface {
	EncodePNG(w io.Writer, snap game.Snapshot) error
}

// QueueStatser reports command queue statistics
type QueueStatser interface {
	Stats() input.QueueStats
}

// SpectatorStatser reports spectator feed statistics
type SpectatorStatser interface {
	Stats() ipc.PublisherStats
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Frames renders /api/frame.png. If nil the route answers 404.
	Frames FrameEncoder

	// Commands is an optional command queue whose stats are reported by /api/stats
	Commands QueueStatser

	// Spectators is the optional spectator feed reported by /api/stats
	Spectators SpectatorStatser

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine     EngineInterface
	frames     FrameEncoder
	commands   QueueStatser
	spectators SpectatorStatser
	limiter    *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine when no RateLimiter is supplied:
//   - No network listeners are opened
//   - No engine listeners are registered
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	r.Use(middleware.RequestID)
	if !cfg.DisableLogging {
		r.Use(requestLogger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:     cfg.Engine,
		frames:     cfg.Frames,
		commands:   cfg.Commands,
		spectators: cfg.Spectators,
		limiter:    rateLimiter,
	}

	r.Route("/api", func(r chi.Router) {
		// Read side
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/frame.png", h.handleGetFrame)

		// Phase controls
		r.Post("/start", h.handleStart)
		r.Post("/milestone/ack", h.handleAck)
		r.Post("/restart", h.handleRestart)

		// Input
		r.Post("/direction", h.handleDirection)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
