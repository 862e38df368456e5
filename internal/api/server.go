package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/input"
	"bernar-snake/internal/render"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub and the command queue.
type Server struct {
	engine      *game.Engine
	cfg         config.ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	cmdLimiter  *input.RateLimiter
	commands    *input.CommandQueue
	httpServer  *http.Server
	stopMetrics chan struct{}
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
// spectators may be nil when the spectator feed is disabled.
func NewServer(engine *game.Engine, cfg config.ServerConfig, renderCfg config.RenderConfig, spectators SpectatorStatser) *Server {
	s := &Server{
		engine:      engine,
		cfg:         cfg,
		stopMetrics: make(chan struct{}),
	}

	s.rateLimiter = NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		Control:           ControlBudget(engine.Rules().MinInterval),
	})
	s.cmdLimiter = input.NewRateLimiter(input.DefaultRateLimitConfig)
	s.commands = input.NewCommandQueue(input.NewHandler(engine, s.cmdLimiter), input.DefaultQueueConfig())

	s.wsHub = NewWebSocketHub(HubConfig{
		MaxConnections:      cfg.MaxWSConnections,
		MaxConnectionsPerIP: cfg.MaxConnectionsPerIP,
		Origins:             NewOriginChecker(cfg.CORSOrigins),
		Commands:            s.commands,
		Limits:              s.cmdLimiter,
	})

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Frames:      render.NewFrameRenderer(renderCfg),
		Commands:    s.commands,
		Spectators:  spectators,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
	})

	// WebSocket route needs the hub instance, so it is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start wires engine listeners, starts background workers and serves HTTP.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.engine.OnEvent(s.wsHub.BroadcastEvent)
	s.engine.OnStep(RecordStep)

	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.cfg.BroadcastInterval())
	s.commands.Start()
	go s.metricsLoop()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("🌐 API server starting")
	log.Info().Str("ws", "ws://localhost"+addr+"/ws").Msg("🐍 Snake WebSocket")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests and then stops background workers
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsHub.Stop()
	s.commands.Stop()
	s.cmdLimiter.Stop()
	s.rateLimiter.Stop()
	select {
	case <-s.stopMetrics:
	default:
		close(s.stopMetrics)
	}
	return err
}

// metricsLoop mirrors event log counters into Prometheus
func (s *Server) metricsLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopMetrics:
			return
		case <-ticker.C:
			UpdateEventLogStats(s.engine.EventLogStats())
		}
	}
}
