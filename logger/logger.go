// Package logger sets up the process-wide slog logger and carries request
// scoped attributes through context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects level, format and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output string // stdout, file, both
	File   string
}

type ctxKey struct{}

// New builds a logger from cfg and installs it as the slog default.
func New(cfg Config) (*slog.Logger, error) {
	var output io.Writer
	switch cfg.Output {
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		}
		output = rotating
		if cfg.Output == "both" {
			output = io.MultiWriter(os.Stdout, rotating)
		}
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext, or the default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// Gorm returns a gorm logger that writes through l.
func Gorm(l *slog.Logger, level string) gormlogger.Interface {
	logLevel := gormlogger.Warn
	if ParseLevel(level) == slog.LevelDebug {
		logLevel = gormlogger.Info
	}
	return gormlogger.New(gormWriter{l: l}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct {
	l *slog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.l.Info(fmt.Sprintf(format, args...), "component", "gorm")
}
