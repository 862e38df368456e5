// Command streamer follows the server's spectator feed and encodes the board
// with FFmpeg, to a video file or a live RTMP ingest.
//
// Start the server first (go run ./cmd/server), then this process.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/ipc"
	"bernar-snake/internal/render"
	"bernar-snake/internal/streaming"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const helloTimeout = 30 * time.Second

func main() {
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

	log.Info().Msg("🎥 ================================")
	log.Info().Msg("🎥  BERNAR SNAKE - STREAMER")
	log.Info().Msg("🎥 ================================")

	if appConfig.Stream.Output == "" {
		log.Fatal().Msg("❌ SNAKE_STREAM_OUTPUT is empty")
	}

	subscriber := ipc.NewSubscriber(appConfig.Spectator.SocketPath)
	subscriber.OnDisconnect(func() {
		// The subscriber reconnects; keep encoding the last frame meanwhile
		log.Warn().Msg("🔌 Lost the game server, retrying")
	})
	if err := subscriber.Start(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start spectator feed")
	}
	defer subscriber.Stop()

	log.Info().Str("addr", ipc.PlatformAddress(appConfig.Spectator.SocketPath)).Msg("⏳ Waiting for game server...")
	hello, ok := subscriber.WaitForHello(helloTimeout)
	if !ok {
		log.Fatal().Msg("❌ No game server, start it first: go run ./cmd/server")
	}

	grid := game.Grid{Width: hello.Width, Height: hello.Height}
	streamer := streaming.NewStreamManager(
		streaming.NewFeedSource(subscriber),
		render.NewFrameRenderer(appConfig.Render),
		grid,
		appConfig.Stream,
	)
	if err := streamer.Start(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start FFmpeg")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("✅ Streaming! Press Ctrl+C to stop.")
loop:
	for {
		select {
		case <-quit:
			break loop
		case <-ticker.C:
			if !streamer.IsStreaming() {
				log.Error().Msg("❌ Encoder stopped")
				break loop
			}
			stats := streamer.Stats()
			feed := subscriber.Stats()
			log.Info().
				Str("uptime", stats.Uptime).
				Uint64("frames", stats.Writer.FramesWritten).
				Uint64("dropped", stats.Writer.Buffer.Dropped).
				Int64("snapshots", feed.Received).
				Msg("📊 Stream stats")
		}
	}

	log.Info().Msg("🛑 Shutting down...")
	streamer.Stop()

	stats := streamer.Stats()
	log.Info().
		Str("output", stats.Output).
		Uint64("frames", stats.Writer.FramesWritten).
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
