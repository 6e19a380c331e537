// Package logger builds the slog logger of the executables on a zap core.
package logger

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Log is a slog logger backed by zap
type Log struct {
	*slog.Logger
	zl *zap.Logger
}

// New creates a JSON logger writing to stderr at the given level
func New(level slog.Level) (*Log, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.Encoding = "json"
	zc.Level.SetLevel(zapLevel(level))

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Log{
		Logger: slog.New(zapslog.NewHandler(l.Core())),
		zl:     l,
	}, nil
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zap.ErrorLevel
	case level >= slog.LevelWarn:
		return zap.WarnLevel
	case level >= slog.LevelInfo:
		return zap.InfoLevel
	default:
		return zap.DebugLevel
	}
}

// Close flushes buffered entries
func (l *Log) Close() {
	// Sync reports an error for stderr on some platforms; nothing to do about it.
	_ = l.zl.Sync()
}
