// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for playback, data and server settings.
//
// Precedence: built-in defaults, then the optional YAML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when REPLAY_CONFIG is unset
const DefaultConfigFile = "replay.yml"

// =============================================================================
// PLAYBACK CONFIGURATION
// =============================================================================

// PlaybackConfig controls the frame driver and the derived session data.
type PlaybackConfig struct {
	FPS           int           `yaml:"fps" validate:"min=1,max=240"`
	SpeedFactor   float64       `yaml:"speedFactor" validate:"min=0"`
	SlowMoFactor  float64       `yaml:"slowMoFactor" validate:"gt=0,lte=1"`
	SlowMoEnabled bool          `yaml:"slowMoEnabled"`
	PingInterval  time.Duration `yaml:"pingInterval" validate:"min=1s"`
	TailStep      time.Duration `yaml:"tailStep" validate:"min=1ms"`
	TailCount     int           `yaml:"tailCount" validate:"min=0,max=100"`
	MarkerSize    float64       `yaml:"markerSize" validate:"gt=0"`
	AutoPlay      bool          `yaml:"autoPlay"`

	CatchTolerance time.Duration `yaml:"catchTolerance" validate:"min=1s"`
}

// DefaultPlayback returns the default playback configuration.
func DefaultPlayback() PlaybackConfig {
	return PlaybackConfig{
		FPS:          30,
		SpeedFactor:  120, // two minutes of game per second
		SlowMoFactor: 0.1,
		PingInterval: 5 * time.Minute, // in-game broadcast rate
		TailStep:     20 * time.Second,
		TailCount:    10,
		MarkerSize:   20,

		CatchTolerance: 2 * time.Minute,
	}
}

// PlaybackFromEnv applies environment overrides to cfg.
func PlaybackFromEnv(cfg PlaybackConfig) PlaybackConfig {
	if fps := getEnvInt("REPLAY_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	if s := getEnvFloat("REPLAY_SPEED", -1); s >= 0 {
		cfg.SpeedFactor = s
	}
	if s := getEnvFloat("REPLAY_SLOWMO_FACTOR", 0); s > 0 {
		cfg.SlowMoFactor = s
	}
	if v := os.Getenv("REPLAY_SLOWMO"); v != "" {
		cfg.SlowMoEnabled = v == "true"
	}
	if d := getEnvDuration("REPLAY_PING_INTERVAL", 0); d > 0 {
		cfg.PingInterval = d
	}
	if d := getEnvDuration("REPLAY_TAIL_STEP", 0); d > 0 {
		cfg.TailStep = d
	}
	if n := getEnvInt("REPLAY_TAIL_COUNT", -1); n >= 0 {
		cfg.TailCount = n
	}
	if d := getEnvDuration("REPLAY_CATCH_TOLERANCE", 0); d > 0 {
		cfg.CatchTolerance = d
	}
	if os.Getenv("REPLAY_AUTOPLAY") == "true" {
		cfg.AutoPlay = true
	}
	return cfg
}

// =============================================================================
// DATA CONFIGURATION
// =============================================================================

// DataConfig locates the exported game logs.
type DataConfig struct {
	Dir             string `yaml:"dir" validate:"required"`
	StatusFile      string `yaml:"statusFile" validate:"required"`
	CaughtFile      string `yaml:"caughtFile" validate:"required"`
	NamesFile       string `yaml:"namesFile" validate:"required"`
	InterestingFile string `yaml:"interestingFile"`
	JournalFile     string `yaml:"journalFile"`
}

// DefaultData returns the file names the game server exports.
func DefaultData() DataConfig {
	return DataConfig{
		Dir:             "data",
		StatusFile:      "regular_status_update.json",
		CaughtFile:      "team_caught.json",
		NamesFile:       "team_names.json",
		InterestingFile: "interesting_timestamps.json",
		JournalFile:     "replay_journal.ndjson",
	}
}

// DataFromEnv applies environment overrides to cfg.
func DataFromEnv(cfg DataConfig) DataConfig {
	if v := os.Getenv("REPLAY_DATA_DIR"); v != "" {
		cfg.Dir = v
	}
	if v, ok := os.LookupEnv("REPLAY_JOURNAL"); ok {
		cfg.JournalFile = v
	}
	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" validate:"min=1,max=65535"`
	DebugPort   int      `yaml:"debugPort" validate:"min=0,max=65535"`
	CORSOrigins []string `yaml:"corsOrigins"`
	RateLimit   float64  `yaml:"rateLimit" validate:"gt=0"` // requests per second per IP
	RateBurst   int      `yaml:"rateBurst" validate:"min=1"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		DebugPort:   6060,
		CORSOrigins: []string{"*"},
		RateLimit:   20,
		RateBurst:   40,
	}
}

// ServerFromEnv applies environment overrides to cfg.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", -1); p >= 0 {
		cfg.DebugPort = p
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	return cfg
}

// =============================================================================
// ANALYSIS CONFIGURATION
// =============================================================================

// AnalysisConfig tunes the offline analysis command.
type AnalysisConfig struct {
	ProximityMeters float64       `yaml:"proximityMeters" validate:"gt=0"`
	ResampleStep    time.Duration `yaml:"resampleStep" validate:"min=1ms"`
}

// DefaultAnalysis returns the default analysis configuration.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		ProximityMeters: 50,
		ResampleStep:    time.Second,
	}
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig sizes the PNG frame renderer.
type RenderConfig struct {
	Width   int     `yaml:"width" validate:"min=64,max=4096"`
	Height  int     `yaml:"height" validate:"min=64,max=4096"`
	Padding float64 `yaml:"padding" validate:"min=0"`
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		Width:   1280,
		Height:  720,
		Padding: 40,
	}
}

// RenderFromEnv applies environment overrides to cfg.
func RenderFromEnv(cfg RenderConfig) RenderConfig {
	if w := getEnvInt("RENDER_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("RENDER_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Playback PlaybackConfig `yaml:"playback"`
	Data     DataConfig     `yaml:"data"`
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Render   RenderConfig   `yaml:"render"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Playback: DefaultPlayback(),
		Data:     DefaultData(),
		Server:   DefaultServer(),
		Analysis: DefaultAnalysis(),
		Render:   DefaultRender(),
	}
}

// LoadFile overlays the YAML file at path on the defaults, validates the
// result and applies environment overrides. A missing file is not an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg = applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Path returns the config file named by REPLAY_CONFIG or the default.
func Path() string {
	if p := os.Getenv("REPLAY_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Validate checks every section against its constraints.
func Validate(cfg AppConfig) error {
	v := validator.New()
	sections := []interface{}{cfg.Playback, cfg.Data, cfg.Server, cfg.Analysis, cfg.Render}
	for _, s := range sections {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg AppConfig) AppConfig {
	cfg.Playback = PlaybackFromEnv(cfg.Playback)
	cfg.Data = DataFromEnv(cfg.Data)
	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.Render = RenderFromEnv(cfg.Render)
	return cfg
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
