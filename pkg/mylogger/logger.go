package mylogger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log writes through the given zap logger, appending trace and span ids
// when the context carries a sampled span.
func Log(ctx context.Context, logger *zap.Logger, level zapcore.Level, msg string, fields ...zap.Field) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()

	if spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}

	logger.WithOptions(zap.AddCallerSkip(2)).Log(level, msg, fields...)
}

func Debug(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	Log(ctx, logger, zapcore.DebugLevel, msg, fields...)
}

func Info(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	Log(ctx, logger, zapcore.InfoLevel, msg, fields...)
}

func Warn(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	Log(ctx, logger, zapcore.WarnLevel, msg, fields...)
}

func Error(ctx context.Context, logger *zap.Logger, msg string, fields ...zap.Field) {
	Log(ctx, logger, zapcore.ErrorLevel, msg, fields...)
}
