package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	userIDKey        contextKey = "user_id"
	correlationIDKey contextKey = "correlation_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithCorrelationID связывает записи одной бизнес-операции:
// id события вебхука или id бронирования при расчёте.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext создает логгер с полями из context
// (request_id, user_id, correlation_id, если они есть).
func FromContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if ctx == nil {
		return logger
	}

	var fields []any
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if userID := GetUserID(ctx); userID != "" {
		fields = append(fields, "user_id", userID)
	}
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		fields = append(fields, "correlation_id", correlationID)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logger
}

func CtxDebug(ctx context.Context, msg string, args ...any) {
	logAt(ctx, FromContext(ctx), slog.LevelDebug, msg, args...)
}

func CtxInfo(ctx context.Context, msg string, args ...any) {
	logAt(ctx, FromContext(ctx), slog.LevelInfo, msg, args...)
}

func CtxWarn(ctx context.Context, msg string, args ...any) {
	logAt(ctx, FromContext(ctx), slog.LevelWarn, msg, args...)
}

func CtxError(ctx context.Context, msg string, args ...any) {
	logAt(ctx, FromContext(ctx), slog.LevelError, msg, args...)
}

// CtxWithError логирует error с error объектом
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	fields := append([]any{"error", err.Error()}, args...)
	logAt(ctx, FromContext(ctx), slog.LevelError, msg, fields...)
}
