package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	prev := log
	t.Cleanup(func() { log = prev })

	buf := &bytes.Buffer{}
	log = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level, AddSource: true}))
	return buf
}

type entry struct {
	Msg       string `json:"msg"`
	Level     string `json:"level"`
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Source    struct {
		File string `json:"file"`
		Line int    `json:"line"`
	} `json:"source"`
}

func decode(t *testing.T, buf *bytes.Buffer) entry {
	t.Helper()
	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e), buf.String())
	return e
}

func here() int {
	_, _, line, _ := runtime.Caller(1)
	return line
}

func TestCtxHelpers_SourceIsCaller(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)
	ctx := WithRequestID(context.Background(), "req-1")

	line := here() + 1
	CtxInfo(ctx, "booking settled", "booking_id", "b-1")

	e := decode(t, buf)
	assert.Equal(t, "booking settled", e.Msg)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "logger_test.go", filepath.Base(e.Source.File))
	assert.Equal(t, line, e.Source.Line)
}

func TestCtxWithError_SourceIsCaller(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)

	line := here() + 1
	CtxWithError(context.Background(), "send failed", assert.AnError)

	e := decode(t, buf)
	assert.Equal(t, "ERROR", e.Level)
	assert.Equal(t, assert.AnError.Error(), e.Error)
	assert.Equal(t, "logger_test.go", filepath.Base(e.Source.File))
	assert.Equal(t, line, e.Source.Line)
}

func TestPackageHelpers_SourceIsCaller(t *testing.T) {
	buf := captureJSON(t, slog.LevelDebug)

	line := here() + 1
	Warn("config fallback")

	e := decode(t, buf)
	assert.Equal(t, "logger_test.go", filepath.Base(e.Source.File))
	assert.Equal(t, line, e.Source.Line)
}

func TestCtxHelpers_RespectLevel(t *testing.T) {
	buf := captureJSON(t, slog.LevelWarn)

	CtxDebug(context.Background(), "noise")
	CtxInfo(context.Background(), "noise")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
