package overlay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/overlay/compositor"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

// backends holds the compositors of live sessions so SetLogger can reach
// them.
var backends sync.Map // compositor.Compositor -> struct{}

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for overlay and the compositor backends
// of its sessions. By default overlay produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by overlay:
//   - [slog.LevelDebug]: every opacity commit, plane sizes
//   - [slog.LevelInfo]: session init and free, display geometry
//   - [slog.LevelWarn]: failed best-effort cleanup
//
// Example:
//
//	overlay.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	backends.Range(func(key, _ any) bool {
		propagateLogger(key.(compositor.Compositor), l)
		return true
	})
}

// Logger returns the current logger used by overlay.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// propagateLogger passes l to c if c accepts a logger.
func propagateLogger(c compositor.Compositor, l *slog.Logger) {
	if ls, ok := c.(compositor.LoggerSetter); ok {
		ls.SetLogger(l)
	}
}

func trackBackend(c compositor.Compositor) {
	backends.Store(c, struct{}{})
	propagateLogger(c, Logger())
}

func untrackBackend(c compositor.Compositor) {
	backends.Delete(c)
}
