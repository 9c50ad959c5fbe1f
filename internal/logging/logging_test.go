package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopDiscards(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if Nop().Enabled(context.Background(), level) {
			t.Errorf("Nop().Enabled(%v) = true, want false", level)
		}
	}
	if OrNop(nil) != Nop() {
		t.Error("OrNop(nil) did not return the discard logger")
	}
	l := slog.Default()
	if OrNop(l) != l {
		t.Error("OrNop(l) did not return l")
	}
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewConsoleHandler(&buf, slog.LevelDebug)).With("component", "frame")

	l.Debug("begin frame", "slot", 1)
	l.Warn("present occluded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "debug")
		assert.Contains(t, lines[0], "] begin frame component=frame slot=1")
		assert.Contains(t, lines[1], "WARN")
		assert.Contains(t, lines[1], "present occluded")
	}
}

func TestConsoleHandlerLevelAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, slog.LevelWarn)
	l := slog.New(h.WithGroup("gpu"))

	l.Info("hidden")
	l.Error("device lost", "code", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "gpu.code=7")
	assert.Contains(t, out, "ERROR")
}

func TestConsoleHandlerGroupQualifiesOnce(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewConsoleHandler(&buf, slog.LevelInfo))

	base.WithGroup("gpu").With("slot", 1).Info("a")
	base.With("slot", 2).WithGroup("gpu").Info("b")
	base.WithGroup("gpu").WithGroup("queue").Info("c", "fence", 3)
	base.Info("d", slog.Group("swap", "index", 4))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "] a gpu.slot=1"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "] b slot=2"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "] c gpu.queue.fence=3"), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], "] d swap.index=4"), lines[3])
}
