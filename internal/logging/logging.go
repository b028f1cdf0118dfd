// Package logging builds the zap logger and maps the verbosity-style Log(level, ...)
// calls used across the bridge onto it.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zot/ezbridge/internal/config"
)

// New creates the application logger. Output goes to stderr so stdout stays free for
// the feed and for script output redirection.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	// Verbose runs need debug output regardless of the configured level.
	if cfg.Verbosity >= 2 && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	switch cfg.Format {
	case "", "console":
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	case "json":
		zc.Encoding = "json"
	default:
		return nil, fmt.Errorf("log format %q: want console or json", cfg.Format)
	}
	return zc.Build()
}

// Logf writes a verbosity-gated message.
// Level 0 is always logged as a warning, level 1 as info and anything higher as debug;
// levels above verbosity are dropped.
func Logf(log *zap.Logger, verbosity, level int, format string, args ...any) {
	if log == nil || level > verbosity && level > 0 {
		return
	}
	s := log.Sugar()
	switch {
	case level <= 0:
		s.Warnf(format, args...)
	case level == 1:
		s.Infof(format, args...)
	default:
		s.Debugf(format, args...)
	}
}
