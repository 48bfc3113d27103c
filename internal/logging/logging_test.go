package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gg"
)

func TestLogger_DefaultIsSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger should be disabled at every level")
	}
}

func TestSetLogger_SharedWithGG(t *testing.T) {
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(l)
	if gg.Logger() != l {
		t.Error("gg did not receive the installed logger")
	}

	SetLogger(nil)
	if gg.Logger() == l {
		t.Error("gg kept the logger after reset")
	}
	if gg.Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("gg logger should be silent after reset")
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer SetLogger(nil)

	Logger().Warn("block size clamped", "block_size", 0)
	Logger().Debug("should not appear")

	out := buf.String()
	if !strings.Contains(out, "block size clamped") {
		t.Errorf("warn record missing from output: %q", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug record leaked at warn level: %q", out)
	}
}
