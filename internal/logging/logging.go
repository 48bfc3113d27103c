// Package logging holds the structured logger shared by the library packages.
//
// Library code never prints on its own: until SetLogger is called every
// record is dropped by a no-op handler, so the stages stay silent when used
// outside the MCP binary. The binary installs a stderr handler at startup.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gg"
)

// nopHandler discards all records. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs l for all library packages and for gogpu/gg, which
// draws the grid overlay. Passing nil restores the silent default for both.
// Safe for concurrent use.
//
// Levels in use:
//   - Debug: per-stage diagnostics (edge counts, optimizer displacement)
//   - Warn: invalid input that was replaced by a fallback
func SetLogger(l *slog.Logger) {
	if l == nil {
		gg.SetLogger(nil)
		loggerPtr.Store(slog.New(nopHandler{}))
		return
	}
	gg.SetLogger(l)
	loggerPtr.Store(l)
}

// Logger returns the current library logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
