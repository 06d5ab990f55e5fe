// Package clog buffers structured log fields in a request context so that
// each request emits a single log line.
package clog

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfg = config()

var Logger, _ = cfg.Build()

func config() zap.Config {
	c := zap.NewProductionConfig()
	// Stackdriver parses "severity" and "message".
	c.EncoderConfig.LevelKey = "severity"
	c.EncoderConfig.MessageKey = "message"
	c.EncoderConfig.EncodeLevel = googleLevelEncoder
	c.EncoderConfig.TimeKey = ""
	// one line per request, the error field carries the cause
	c.DisableCaller = true
	c.DisableStacktrace = true
	return c
}

func googleLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("DEBUG")
	case zapcore.InfoLevel:
		enc.AppendString("INFO")
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.ErrorLevel:
		enc.AppendString("ERROR")
	case zapcore.DPanicLevel:
		enc.AppendString("CRITICAL")
	case zapcore.PanicLevel:
		enc.AppendString("ALERT")
	case zapcore.FatalLevel:
		enc.AppendString("EMERGENCY")
	default:
		enc.AppendString("DEFAULT")
	}
}

type ctxKey struct{}

type ctxValue struct {
	fields []zap.Field
	sync.Mutex
}

func Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &ctxValue{})
}

// Set appends fields to the buffer in ctx. It is a no-op on contexts that
// did not pass through Context, so callers may log against arbitrary
// pipeline requests without checking.
func Set(ctx context.Context, fields ...zap.Field) {
	v, ok := ctx.Value(ctxKey{}).(*ctxValue)
	if !ok {
		return
	}
	v.Lock()
	v.fields = append(v.fields, fields...)
	v.Unlock()
}

// Log emits the buffered fields as a single line and resets the buffer.
func Log(ctx context.Context, msg string) {
	v, ok := ctx.Value(ctxKey{}).(*ctxValue)
	if !ok {
		Logger.Info(msg)
		return
	}
	v.Lock()
	Logger.Info(msg, v.fields...)
	v.fields = v.fields[:0]
	v.Unlock()
}

// Error emits the buffered fields plus err at error level, without
// resetting the buffer.
func Error(ctx context.Context, msg string, err error) {
	v, ok := ctx.Value(ctxKey{}).(*ctxValue)
	if !ok {
		Logger.Error(msg, zap.Error(err))
		return
	}
	v.Lock()
	fields := append([]zap.Field{zap.Error(err)}, v.fields...)
	v.Unlock()
	Logger.Error(msg, fields...)
}
