package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"example.com/h2mux/internal/config"
)

// LogFields carries structured key/value context for a log entry.
type LogFields map[string]interface{}

// Logger is a leveled, structured logger shared across the transport. It is
// a thin wrapper over zerolog so call sites can pass LogFields maps without
// touching the backend's builder API.
type Logger struct {
	zl     zerolog.Logger
	output io.WriteCloser // Non-nil only when we own the target (file path)
}

// New creates a Logger from the logging configuration. File targets are
// opened in append mode; stdout/stderr targets are not owned and never
// closed by the Logger.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	var w io.Writer
	var owned io.WriteCloser
	switch cfg.Target {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Target, err)
		}
		w = file
		owned = file
	}

	zl := zerolog.New(w).Level(zerologLevel(cfg.LogLevel)).With().Timestamp().Logger()
	return &Logger{zl: zl, output: owned}, nil
}

// NewWithWriter creates a Logger emitting to w at the given level. Intended
// for tests and embedded use.
func NewWithWriter(w io.Writer, level config.LogLevel) *Logger {
	return &Logger{zl: zerolog.New(w).Level(zerologLevel(level))}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func zerologLevel(l config.LogLevel) zerolog.Level {
	switch l {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug-level entry with optional structured fields.
func (l *Logger) Debug(msg string, fields LogFields) {
	l.zl.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Info logs an info-level entry with optional structured fields.
func (l *Logger) Info(msg string, fields LogFields) {
	l.zl.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Warn logs a warning-level entry with optional structured fields.
func (l *Logger) Warn(msg string, fields LogFields) {
	l.zl.Warn().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Error logs an error-level entry with optional structured fields.
func (l *Logger) Error(msg string, fields LogFields) {
	l.zl.Error().Fields(map[string]interface{}(fields)).Msg(msg)
}

// DebugEnabled reports whether debug entries would be emitted; callers use
// it to skip building expensive field maps.
func (l *Logger) DebugEnabled() bool {
	return l.zl.GetLevel() <= zerolog.DebugLevel
}

// Close releases a file target, if the Logger owns one.
func (l *Logger) Close() error {
	if l.output != nil {
		return l.output.Close()
	}
	return nil
}
