// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
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
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
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
//   - Individual page/detail request flow
//   - Cache operations (hit/miss, key, TTL)
//   - Per-record transformation results
//
// Info: Normal operation events
//   - Pipeline start/finish and phase transitions
//   - Page fetch progress
//   - Batch submissions
//   - Final run summary
//
// Warn: Degraded but recoverable conditions
//   - Retry attempts and backoff
//   - Unparseable timestamps (record kept, born_at unknown)
//   - Short-circuit pagination termination (empty page before total)
//   - Cache errors (fallback to direct fetch)
//
// Error: Conditions that fail a record, batch, or the run
//   - Validation failures (record dropped)
//   - Batch submissions that exhausted retries
//   - Extraction aborts
//
// Context Fields:
//   - run_id: pipeline run identifier
//   - endpoint: API endpoint path
//   - page: list endpoint page number
//   - animal_id: record identifier
//   - batch: batch sequence number
//   - attempt: retry attempt number
//   - latency: per-attempt request duration
//   - error_class: client, server, rate_limit, network
