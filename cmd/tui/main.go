package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"
	"bernar-snake/internal/ipc"
	"bernar-snake/internal/tui"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	watch := flag.Bool("watch", false, "spectate the game hosted by the server instead of playing")
	flag.Parse()

	_ = godotenv.Load()

	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The screen owns stdout, so logs go to a file when one is configured
	logFile := initLogger(appConfig.Log)
	if logFile != nil {
		defer logFile.Close()
	}

	if *watch {
		os.Exit(spectate(appConfig))
	}

	rules, err := appConfig.Rules()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid rules: %v\n", err)
		os.Exit(1)
	}

	engine, err := game.NewEngine(game.EngineConfig{
		Rules: rules,
		Seed:  appConfig.Game.Seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "screen init: %v\n", err)
		os.Exit(1)
	}

	cols, rows := tui.BoardSize(rules.Grid)
	if w, h := screen.Size(); w < cols || h < rows {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "terminal too small: need %dx%d, have %dx%d\n", cols, rows, w, h)
		os.Exit(1)
	}

	chime := tui.NewChime(appConfig.Audio.SampleRate, appConfig.Audio.Volume)
	if appConfig.Audio.Enabled {
		if err := chime.Init(); err != nil {
			// Non-fatal, game can run without sound
			log.Warn().Err(err).Msg("⚠️ Audio initialization failed")
		}
	}

	tui.NewGame(screen, engine, chime).Run()
	screen.Fini()

	stats := engine.Stats()
	fmt.Printf("runs: %d  apples: %d  wins: %d\n", stats.Runs, stats.ApplesTotal, stats.Wins)
}

// spectate follows the server's feed until the viewer quits
func spectate(appConfig config.AppConfig) int {
	sub := ipc.NewSubscriber(appConfig.Spectator.SocketPath)
	if err := sub.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "spectator: %v\n", err)
		return 1
	}
	defer sub.Stop()

	hello, ok := sub.WaitForHello(5 * time.Second)
	if !ok {
		fmt.Fprintf(os.Stderr, "no game at %s\n", ipc.PlatformAddress(appConfig.Spectator.SocketPath))
		return 1
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screen: %v\n", err)
		return 1
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "screen init: %v\n", err)
		return 1
	}

	cols, rows := tui.BoardSize(game.Grid{Width: hello.Width, Height: hello.Height})
	if w, h := screen.Size(); w < cols || h < rows {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "terminal too small: need %dx%d, have %dx%d\n", cols, rows, w, h)
		return 1
	}

	chime := tui.NewChime(appConfig.Audio.SampleRate, appConfig.Audio.Volume)
	if appConfig.Audio.Enabled {
		if err := chime.Init(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Audio initialization failed")
		}
	}

	tui.NewSpectator(screen, sub, chime).Run()
	screen.Fini()

	stats := sub.Stats()
	fmt.Printf("snapshots: %d  reconnects: %d\n", stats.Received, stats.Reconnects)
	return 0
}

// initLogger sends logs to SNAKE_TUI_LOG or discards them
func initLogger(cfg config.LogConfig) *os.File {
	var out io.Writer = io.Discard
	var file *os.File
	if path := os.Getenv("SNAKE_TUI_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			out, file = f, f
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)
	return file
}
