package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/pavanmanishd/chunkpool"
)

// envPrefix namespaces every environment variable read by poolbench.
const envPrefix = "POOLBENCH"

// Config validation errors
var (
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidLogFormat = errors.New("log_format must be 'text' or 'json'")
	ErrInvalidBackend   = errors.New("backend must be 'heap' or 'mmap'")
	ErrInvalidBatch     = errors.New("batch must be positive")
	ErrInvalidThreads   = errors.New("threads must be positive")
	ErrInvalidExpand    = errors.New("expand must not be negative")
	ErrInvalidInitial   = errors.New("initial must not be negative")
)

// Config holds poolbench settings. Values come from POOLBENCH_* environment
// variables (optionally loaded from .env) and are overridden by flags.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	Backend   string `envconfig:"BACKEND" default:"heap"`

	// Batch is how many chunks are held before the batch is freed.
	Batch int `envconfig:"BATCH" default:"1000"`
	// Threads above 1 run on a SafePool.
	Threads int `envconfig:"THREADS" default:"1"`
	// Initial is the starting chunk count; 0 means NMEMB.
	Initial int `envconfig:"INITIAL" default:"0"`
	// Expand is the growth step on exhaustion; 0 fails instead.
	Expand int `envconfig:"EXPAND" default:"0"`

	Metrics bool `envconfig:"METRICS" default:"false"`
	Check   bool `envconfig:"CHECK" default:"false"`
}

// LoadConfig reads .env files (missing ones are ignored) and then the
// environment.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return ErrInvalidLogLevel
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	if cfg.Backend != "heap" && cfg.Backend != "mmap" {
		return ErrInvalidBackend
	}
	if cfg.Batch <= 0 {
		return ErrInvalidBatch
	}
	if cfg.Threads <= 0 {
		return ErrInvalidThreads
	}
	if cfg.Expand < 0 {
		return ErrInvalidExpand
	}
	if cfg.Initial < 0 {
		return ErrInvalidInitial
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds the slog logger described by cfg, writing to w.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(cfg.LogLevel)]}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// PoolBackend returns the chunkpool backend named by c.Backend.
func (c *Config) PoolBackend() chunkpool.Backend {
	if c.Backend == "mmap" {
		return chunkpool.MmapBackend{}
	}
	return chunkpool.HeapBackend{}
}
