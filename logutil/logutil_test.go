package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Level(0))
	assert.Equal(t, slog.LevelDebug, Level(1))
	assert.Equal(t, LevelTrace, Level(2))
	assert.Equal(t, LevelTrace, Level(5))
}

func TestTrace(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var b bytes.Buffer
	slog.SetDefault(NewLogger(&b, LevelTrace))
	Trace("macro", "kind", "h")

	out := b.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "msg=macro")
	assert.Contains(t, out, "kind=h")
	assert.Contains(t, out, "source=logutil_test.go:")

	b.Reset()
	slog.SetDefault(NewLogger(&b, slog.LevelDebug))
	Trace("hidden")
	slog.Debug("shown")
	assert.False(t, strings.Contains(b.String(), "hidden"))
	assert.Contains(t, b.String(), "msg=shown")
}

func TestNewLoggerInfo(t *testing.T) {
	var b bytes.Buffer
	logger := NewLogger(&b, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("loaded", "hmms", 4)

	assert.NotContains(t, b.String(), "hidden")
	assert.NotContains(t, b.String(), "source=")
	assert.Contains(t, b.String(), "hmms=4")
}
