package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bernar-snake/internal/api"
	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/ipc"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file from parent directory, then the working directory
	envErr := godotenv.Load("../.env")
	if envErr != nil {
		envErr = godotenv.Load(".env")
	}

	appConfig, err := config.Load()
	initLogger(appConfig.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}
	if envErr != nil {
		log.Info().Msg("💡 No .env file found, using environment variables only")
	}

	log.Info().Msg("🐍 ================================")
	log.Info().Msg("🐍  BERNAR SNAKE - GO ENGINE")
	log.Info().Msg("🐍 ================================")

	rules, err := appConfig.Rules()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid game rules")
	}
	log.Info().
		Int("width", rules.Grid.Width).
		Int("height", rules.Grid.Height).
		Int("winTarget", rules.WinTarget).
		Int("milestoneAt", rules.MilestoneAt).
		Dur("interval", rules.InitialInterval).
		Msg("🎮 Rules loaded")

	engine, err := game.NewEngine(game.EngineConfig{
		Rules:     rules,
		Seed:      appConfig.Game.Seed,
		AutoStart: appConfig.Server.AutoStart,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create engine")
	}

	// Start event log
	if err := engine.StartEventLog(appConfig.EventLog.Path); err != nil {
		log.Warn().Err(err).Msg("⚠️ Event log disabled")
	} else if appConfig.EventLog.Path != "" {
		log.Info().Str("path", appConfig.EventLog.Path).Msg("📝 Event log")
	}

	// Start debug server
	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:    appConfig.Observability.DebugEnabled,
		ListenAddr: appConfig.Observability.DebugAddr,
	}); err != nil {
		log.Warn().Err(err).Msg("⚠️ Debug server disabled")
	}

	// Spectator feed for `tui -watch`
	var feed *ipc.Publisher
	if appConfig.Spectator.Enabled {
		feed = ipc.NewPublisher(appConfig.Spectator.SocketPath)
		feed.SetHello(ipc.HelloFromRules(rules, engine.Stats().Seed))
		feed.Attach(engine)
		if err := feed.Start(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Spectator feed disabled")
			feed = nil
		}
	}

	// A nil *ipc.Publisher must not become a non-nil interface
	var spectators api.SpectatorStatser
	if feed != nil {
		spectators = feed
	}
	server := api.NewServer(engine, appConfig.Server, appConfig.Render, spectators)

	engine.Start()
	log.Info().Msg("✅ Game engine started")

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Info().Msg("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ HTTP shutdown incomplete")
	}
	engine.Stop()
	if feed != nil {
		feed.Stop()
	}
	engine.StopEventLog()

	stats := engine.Stats()
	log.Info().
		Uint64("runs", stats.Runs).
		Uint64("apples", stats.ApplesTotal).
		Uint64("wins", stats.Wins).
		Msg("👋 Goodbye!")
}

// initLogger configures the global zerolog logger
func initLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Pretty {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)
}
