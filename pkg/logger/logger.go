// Package logger provides a zap-based application logger that attaches the
// service name and the active trace id to every entry.
package logger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger writes.
type Level int8

// Supported levels.
const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// ParseLevel converts a LOG_LEVEL style string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// TraceIDFn extracts a trace id from the context. An empty string means there
// is no active trace.
type TraceIDFn func(ctx context.Context) string

// Logger writes structured key/value entries.
type Logger struct {
	core      zapcore.Core
	sugar     *zap.SugaredLogger
	service   string
	traceIDFn TraceIDFn
}

// New returns a Logger writing JSON lines to w.
func New(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.Level(minLevel),
	)
	return build(core, serviceName, traceIDFn)
}

func build(core zapcore.Core, serviceName string, traceIDFn TraceIDFn) *Logger {
	z := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	)
	return &Logger{
		core:      core,
		sugar:     z.Sugar(),
		service:   serviceName,
		traceIDFn: traceIDFn,
	}
}

// Tee returns a Logger that also writes every entry to core. It is used to
// bridge entries into the OpenTelemetry log pipeline.
func (l *Logger) Tee(core zapcore.Core) *Logger {
	return build(zapcore.NewTee(l.core, core), l.service, l.traceIDFn)
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.DebugLevel, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.InfoLevel, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.WarnLevel, msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, zapcore.ErrorLevel, msg, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) write(ctx context.Context, lvl zapcore.Level, msg string, args ...any) {
	if l.traceIDFn != nil {
		if id := l.traceIDFn(ctx); id != "" {
			args = append(args, "trace_id", id)
		}
	}
	switch lvl {
	case zapcore.DebugLevel:
		l.sugar.Debugw(msg, args...)
	case zapcore.InfoLevel:
		l.sugar.Infow(msg, args...)
	case zapcore.WarnLevel:
		l.sugar.Warnw(msg, args...)
	default:
		l.sugar.Errorw(msg, args...)
	}
}
