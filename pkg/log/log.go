// Package log provides the process-wide structured logger, backed by
// zap with optional lumberjack-based file rotation.
package log

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide default, reassigned by cmd/osmcore once
// flags are parsed.
var Logger = CreateLogger(zap.NewAtomicLevelAt(zapcore.InfoLevel), "")

// coreLogger wraps a zap.SugaredLogger so Errorw can special-case
// context cancellation, which is routine during sweep shutdown and
// would otherwise spam the log at error level.
type coreLogger struct {
	*zap.SugaredLogger
}

func (l *coreLogger) Errorw(msg string, keysAndValues ...interface{}) {
	for i := 1; i < len(keysAndValues); i += 2 {
		if err, ok := keysAndValues[i].(error); ok {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				l.SugaredLogger.Warnw(msg, keysAndValues...)
				return
			}
		}
	}
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// ParseLogLevel parses "debug", "info", "warn", "error" (case-sensitive,
// empty defaults to info) into an atomic level usable by CreateLogger.
func ParseLogLevel(s string) (zap.AtomicLevel, error) {
	if s == "" {
		s = "info"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return zap.NewAtomicLevelAt(lvl), nil
}

// CreateLoggerWithLumberjack builds a JSON logger writing to path with
// size-based rotation (maxSizeMB per file, 3 backups kept, 28 days
// retention, compressed).
func CreateLoggerWithLumberjack(path string, maxSizeMB int, level zapcore.Level) *coreLogger {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(writer),
		level,
	)
	return &coreLogger{zap.New(core).Sugar()}
}

// CreateLogger builds the process logger: a rotating file logger when
// logFile is non-empty, otherwise a console logger at level.
func CreateLogger(level zap.AtomicLevel, logFile string) *coreLogger {
	if logFile != "" {
		return CreateLoggerWithLumberjack(logFile, 100, level.Level())
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()

	zl, err := cfg.Build()
	if err != nil {
		// fall back to a bare no-op-safe logger; this should never
		// realistically fail for a console config.
		zl = zap.NewNop()
	}
	return &coreLogger{zl.Sugar()}
}
