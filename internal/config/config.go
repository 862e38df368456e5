// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for game, server and host settings.
//
// Every section has a DefaultX() constructor and an XFromEnv() that overlays
// SNAKE_* environment variables on top of those defaults.
package config

import (
	"fmt"
	"time"

	"bernar-snake/internal/game"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. SNAKE_PORT
const EnvPrefix = "SNAKE"

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds the simulation parameters.
// The play area is given in pixels and divided into square cells.
type GameConfig struct {
	AreaWidth         int   `envconfig:"AREA_WIDTH"`
	AreaHeight        int   `envconfig:"AREA_HEIGHT"`
	CellSize          int   `envconfig:"CELL_SIZE"`
	InitialLength     int   `envconfig:"INITIAL_LENGTH"`
	InitialIntervalMs int   `envconfig:"INITIAL_INTERVAL_MS"`
	MinIntervalMs     int   `envconfig:"MIN_INTERVAL_MS"`
	SpeedStepMs       int   `envconfig:"SPEED_STEP_MS"`
	WinTarget         int   `envconfig:"WIN_TARGET"`
	MilestoneAt       int   `envconfig:"MILESTONE_AT"` // 0 disables the pause
	Seed              int64 `envconfig:"SEED"`         // 0 seeds from the clock
}

// DefaultGame returns the shipped mini-game settings
func DefaultGame() GameConfig {
	return GameConfig{
		AreaWidth:         600,
		AreaHeight:        600,
		CellSize:          20, // 30x30 grid
		InitialLength:     3,
		InitialIntervalMs: 200,
		MinIntervalMs:     100,
		SpeedStepMs:       10,
		WinTarget:         15,
		MilestoneAt:       10,
		Seed:              0,
	}
}

// GameFromEnv returns game configuration with environment variable overrides
func GameFromEnv() (GameConfig, error) {
	cfg := DefaultGame()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("game config: %w", err)
	}
	return cfg, nil
}

// Rules converts the game section into validated simulation rules
func (g GameConfig) Rules() (game.Rules, error) {
	if g.CellSize <= 0 {
		return game.Rules{}, fmt.Errorf("%w: cell size %d", game.ErrInvalidRules, g.CellSize)
	}
	rules := game.DefaultRules()
	rules.Grid = game.NewGridFromArea(g.AreaWidth, g.AreaHeight, g.CellSize)
	rules.InitialLength = g.InitialLength
	rules.InitialInterval = time.Duration(g.InitialIntervalMs) * time.Millisecond
	rules.MinInterval = time.Duration(g.MinIntervalMs) * time.Millisecond
	rules.SpeedStep = time.Duration(g.SpeedStepMs) * time.Millisecond
	rules.WinTarget = g.WinTarget
	rules.MilestoneAt = g.MilestoneAt

	if err := rules.Validate(); err != nil {
		return game.Rules{}, err
	}
	return rules, nil
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                int      `envconfig:"PORT"`
	CORSOrigins         []string `envconfig:"CORS_ORIGINS"`
	RateLimitRPS        float64  `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst      int      `envconfig:"RATE_LIMIT_BURST"`
	BroadcastIntervalMs int      `envconfig:"BROADCAST_INTERVAL_MS"`
	MaxWSConnections    int      `envconfig:"MAX_WS_CONNECTIONS"`
	MaxConnectionsPerIP int      `envconfig:"MAX_CONNECTIONS_PER_IP"`
	AutoStart           bool     `envconfig:"AUTO_START"` // skip the intro phase
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                3000,
		CORSOrigins:         []string{"*"},
		RateLimitRPS:        10,
		RateLimitBurst:      20,
		BroadcastIntervalMs: 100,
		MaxWSConnections:    500,
		MaxConnectionsPerIP: 10,
		AutoStart:           false,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() (ServerConfig, error) {
	cfg := DefaultServer()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// BroadcastInterval is the period of game:state pushes
func (s ServerConfig) BroadcastInterval() time.Duration {
	return time.Duration(s.BroadcastIntervalMs) * time.Millisecond
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig controls PNG frame output.
type RenderConfig struct {
	CellPx   int `envconfig:"FRAME_CELL_PX"`
	MarginPx int `envconfig:"FRAME_MARGIN_PX"` // border + HUD space around the board
}

// DefaultRender returns the default frame settings.
func DefaultRender() RenderConfig {
	return RenderConfig{
		CellPx:   20,
		MarginPx: 20,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() (RenderConfig, error) {
	cfg := DefaultRender()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("render config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// STREAM CONFIGURATION
// =============================================================================

// StreamConfig controls cmd/streamer, which encodes the spectator feed with FFmpeg.
type StreamConfig struct {
	Output      string  `envconfig:"STREAM_OUTPUT"`  // file path or rtmp(s):// URL
	FPS         int     `envconfig:"STREAM_FPS"`
	Bitrate     int     `envconfig:"STREAM_BITRATE"` // kbps
	FFmpegPath  string  `envconfig:"FFMPEG_PATH"`
	MusicPath   string  `envconfig:"STREAM_MUSIC_PATH"` // OGG Vorbis, empty for none
	MusicVolume float64 `envconfig:"STREAM_MUSIC_VOLUME"`
	SFXVolume   float64 `envconfig:"STREAM_SFX_VOLUME"`
}

// DefaultStream returns the default encoder settings.
func DefaultStream() StreamConfig {
	return StreamConfig{
		Output:      "snake.mp4",
		FPS:         30,
		Bitrate:     2500,
		FFmpegPath:  "ffmpeg",
		MusicVolume: 0.15,
		SFXVolume:   0.5,
	}
}

// StreamFromEnv returns stream configuration with environment variable overrides.
func StreamFromEnv() (StreamConfig, error) {
	cfg := DefaultStream()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("stream config: %w", err)
	}
	if cfg.FPS <= 0 {
		return cfg, fmt.Errorf("stream config: fps must be positive, got %d", cfg.FPS)
	}
	return cfg, nil
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds the terminal host's chime settings.
type AudioConfig struct {
	SampleRate int     `envconfig:"AUDIO_SAMPLE_RATE"`
	Volume     float64 `envconfig:"AUDIO_VOLUME"` // 0.0 to 1.0
	Enabled    bool    `envconfig:"AUDIO_ENABLED"`
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		Volume:     0.15,
		Enabled:    true,
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv() (AudioConfig, error) {
	cfg := DefaultAudio()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("audio config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// OBSERVABILITY, EVENT LOG & LOGGING
// =============================================================================

// ObservabilityConfig controls the localhost debug server.
type ObservabilityConfig struct {
	DebugEnabled bool   `envconfig:"DEBUG_ENABLED"`
	DebugAddr    string `envconfig:"DEBUG_ADDR"`
}

// DefaultObservability binds pprof and metrics to localhost only.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
	}
}

// EventLogConfig holds the JSONL event log location. Empty disables the file.
type EventLogConfig struct {
	Path string `envconfig:"EVENT_LOG_PATH"`
}

// DefaultEventLog returns the default event log settings.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{Path: "events.jsonl"}
}

// SpectatorConfig controls the local snapshot feed read by `tui -watch`.
type SpectatorConfig struct {
	Enabled    bool   `envconfig:"SPECTATOR_ENABLED"`
	SocketPath string `envconfig:"SPECTATOR_SOCKET"`
}

// DefaultSpectator returns the default feed settings.
func DefaultSpectator() SpectatorConfig {
	return SpectatorConfig{
		Enabled:    true,
		SocketPath: "/tmp/bernar-snake.sock",
	}
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL"`
	Pretty bool   `envconfig:"LOG_PRETTY"` // console writer instead of JSON
}

// DefaultLog returns the default logging settings.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info", Pretty: true}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game          GameConfig
	Server        ServerConfig
	Render        RenderConfig
	Stream        StreamConfig
	Audio         AudioConfig
	Observability ObservabilityConfig
	EventLog      EventLogConfig
	Spectator     SpectatorConfig
	Log           LogConfig
}

// Default returns the complete configuration without environment overrides.
func Default() AppConfig {
	return AppConfig{
		Game:          DefaultGame(),
		Server:        DefaultServer(),
		Render:        DefaultRender(),
		Stream:        DefaultStream(),
		Audio:         DefaultAudio(),
		Observability: DefaultObservability(),
		EventLog:      DefaultEventLog(),
		Spectator:     DefaultSpectator(),
		Log:           DefaultLog(),
	}
}

// Load returns the complete configuration with environment overrides.
// The game section is validated so bad rules fail at startup.
func Load() (AppConfig, error) {
	var (
		cfg AppConfig
		err error
	)

	if cfg.Game, err = GameFromEnv(); err != nil {
		return cfg, err
	}
	if cfg.Server, err = ServerFromEnv(); err != nil {
		return cfg, err
	}
	if cfg.Render, err = RenderFromEnv(); err != nil {
		return cfg, err
	}
	if cfg.Stream, err = StreamFromEnv(); err != nil {
		return cfg, err
	}
	if cfg.Audio, err = AudioFromEnv(); err != nil {
		return cfg, err
	}

	cfg.Observability = DefaultObservability()
	cfg.EventLog = DefaultEventLog()
	cfg.Spectator = DefaultSpectator()
	cfg.Log = DefaultLog()
	for name, section := range map[string]interface{}{
		"observability": &cfg.Observability,
		"event log":     &cfg.EventLog,
		"spectator":     &cfg.Spectator,
		"log":           &cfg.Log,
	} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return cfg, fmt.Errorf("%s config: %w", name, err)
		}
	}

	if _, err := cfg.Game.Rules(); err != nil {
		return cfg, fmt.Errorf("game config: %w", err)
	}
	return cfg, nil
}

// Rules builds the simulation rules from the game section
func (c AppConfig) Rules() (game.Rules, error) {
	return c.Game.Rules()
}
