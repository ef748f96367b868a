// Package logging provides structured logging for the SLS core, built
// on zerolog the way the teacher's internal/logger package wraps it for
// TreeStore: one process-wide Logger with per-component child loggers.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with SLS-specific component helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for interactive use
	Output     io.Writer
	WithCaller bool
}

// New creates a new structured logger.
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).With().Timestamp().Str("service", "sls").Logger()
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Zerolog returns the underlying zerolog.Logger for call sites that want
// the raw event builder.
func (l *Logger) Zerolog() *zerolog.Logger { return &l.zlog }

// Component returns a child logger tagged with the given component name,
// mirroring the teacher's DbLogger/GrpcLogger helpers.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// global is the default logger used by code paths that don't carry an
// explicit *Logger (deep helper functions in the free-list chain, for
// instance) — analogous to the teacher's GetGlobalLogger, but only ever
// constructed lazily and never mutated by library code outside tests.
var global *Logger

// Get returns the process-wide default logger, creating it with sane
// defaults on first use.
func Get() *Logger {
	if global == nil {
		global = New(Config{Level: "info", Pretty: true})
	}
	return global
}

// SetGlobal installs l as the process-wide default logger. Callers that
// want structured JSON output in production call this once at startup.
func SetGlobal(l *Logger) { global = l }
