package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

var log *slog.Logger

// Init инициализирует глобальный логгер.
// env: "development" - текст + debug, иначе JSON.
// level (необязательный) переопределяет уровень: debug, info, warn, error.
func Init(env string, level ...string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	}

	if env == "development" {
		opts.Level = slog.LevelDebug
	}
	if len(level) > 0 && level[0] != "" {
		opts.Level = parseLevel(level[0])
	}

	if env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log = slog.New(handler)
	slog.SetDefault(log)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger возвращает глобальный логгер
func GetLogger() *slog.Logger {
	if log == nil {
		Init("development")
	}
	return log
}

// logAt пишет запись, указывая источником код, вызвавший обёртку пакета.
// Вызывать только напрямую из экспортируемых функций пакета.
func logAt(ctx context.Context, l *slog.Logger, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// runtime.Callers, logAt, обёртка
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

func Debug(msg string, args ...any) {
	logAt(context.Background(), GetLogger(), slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	logAt(context.Background(), GetLogger(), slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	logAt(context.Background(), GetLogger(), slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	logAt(context.Background(), GetLogger(), slog.LevelError, msg, args...)
}

// Fatal логирует ошибку и завершает программу
func Fatal(msg string, args ...any) {
	logAt(context.Background(), GetLogger(), slog.LevelError, msg, args...)
	os.Exit(1)
}

// With создает новый логгер с дополнительными полями
func With(args ...any) *slog.Logger {
	return GetLogger().With(args...)
}

func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}

// HTTPLog логирует HTTP запрос
func HTTPLog(method, path string, status int, duration time.Duration, size int) {
	GetLogger().Info("http request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"size_bytes", size,
	)
}

// WorkerLog логирует итерацию фонового воркера
func WorkerLog(worker, operation string, err error, args ...any) {
	fields := append([]any{
		"worker", worker,
		"operation", operation,
	}, args...)

	if err != nil {
		fields = append(fields, "error", err.Error())
		logAt(context.Background(), GetLogger(), slog.LevelError, "worker operation failed", fields...)
	} else {
		logAt(context.Background(), GetLogger(), slog.LevelDebug, "worker operation completed", fields...)
	}
}
