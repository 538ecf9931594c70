// Package logging builds the process-wide zap logger from config and
// lets the level be retuned while running.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"webtrace/internal/config"
)

// Logger couples a zap logger with its atomic level so config reloads
// can change verbosity without rebuilding the logger.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New builds a logger per cfg. Format "json" selects production
// encoding, anything else the console encoder. A non-empty File sends
// output there instead of stderr.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var zc zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: logger, level: level}, nil
}

// SetLevel retunes the minimum level; unknown names fall back to info.
func (l *Logger) SetLevel(name string) {
	l.level.SetLevel(parseLevel(name))
}

func parseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
