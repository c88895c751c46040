// Package logger builds the process-wide zerolog logger and carries it,
// together with a per-request correlation ID, through context.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingConfig selects the log level and output destination. It mirrors
// config.LoggingConfig to avoid a circular import; callers populate it from
// the loaded configuration.
type LoggingConfig struct {
	Level     string
	Output    string // "stdout" (default) or "file"
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New returns a JSON logger on stdout at the given level. An unknown level
// string falls back to info rather than failing startup.
func New(level string) zerolog.Logger {
	return build(os.Stdout, level)
}

// NewFromConfig returns a logger writing to the configured destination.
// Output "file" rotates through lumberjack; anything else means stdout.
func NewFromConfig(cfg LoggingConfig) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.Output == "file" {
		w = NewFileWriter(FileConfig{
			Path:      cfg.FilePath,
			MaxSizeMB: cfg.MaxSizeMB,
			MaxFiles:  cfg.MaxFiles,
		})
	}
	return build(w, cfg.Level)
}

func build(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID stored in ctx, or an
// empty string when none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// FromContext returns the logger stored in ctx, stamped with the context's
// correlation ID when one is present. Without a stored logger it returns a
// default info-level logger, so callers never need a nil check.
func FromContext(ctx context.Context) zerolog.Logger {
	log, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		log = New("info")
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}
	return log
}

// NewCorrelationID generates a fresh UUID correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
