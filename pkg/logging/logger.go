// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// FilePath, when set, additionally writes logs to a rotating file.
	FilePath string

	// MaxSizeMB is the rotation threshold for the log file (default: 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep (default: 3).
	MaxBackups int

	// MaxAgeDays is the retention period for rotated files (default: 14).
	MaxAgeDays int
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Pretty:     false,
		Output:     os.Stderr,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(buildOutput(cfg)).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// buildOutput assembles the log writer: console (optionally pretty) plus an
// optional rotating file.
func buildOutput(cfg Config) io.Writer {
	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: console}
	}

	if cfg.FilePath == "" {
		return console
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return zerolog.MultiLevelWriter(console, rotating)
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Request retries and backoff delays
//   - Document parsing decisions
//
// Info: Normal operation events
//   - Successful lookups and media downloads
//   - Batch run start/finish summaries
//   - Negotiated worker counts
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Cache persistence errors (operation continues uncached)
//   - Quota warnings and batch halts
//
// Error: Error conditions requiring attention
//   - Failed requests (after retries)
//   - Forbidden access (credentials rejected)
//   - Configuration errors
//
// Context Fields:
//   - operation: logical operation name (gameInfo, userInfo, infraInfo)
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_kind: Error classification (network, quota_exceeded, ...)
//   - cache_hit: Boolean indicating cache hit
//   - region: cache region name
//   - ttl: Cache entry TTL
//   - run_id: batch run identifier
