package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelKnownAndUnknown(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNewJSONOutputIncludesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", JSON: true, Output: &buf})

	logger.Debug("starting up", "addr", "127.0.0.1:6767")

	out := buf.String()
	assert.Contains(t, out, `"service":"studiod"`)
	assert.Contains(t, out, `"msg":"starting up"`)
	assert.Contains(t, out, `"addr":"127.0.0.1:6767"`)
}

func TestNewRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", JSON: true, Output: &buf})

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should be filtered"))
	assert.True(t, strings.Contains(out, "should appear"))
}
