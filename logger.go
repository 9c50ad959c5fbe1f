package framecore

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/framecore/internal/logging"
	"github.com/gogpu/wgpu/hal"
)

// loggerPtr stores the package logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger configures the logger for framecore and the hal backends.
// By default nothing is logged. Pass nil to restore silence.
//
// Contexts created after the call log through l unless they were given
// their own logger with WithLogger.
//
// Log levels used by framecore:
//   - [slog.LevelDebug]: frame pacing, resizes, uploads, descriptor heaps
//   - [slog.LevelInfo]: adapter selection and lifecycle
//   - [slog.LevelWarn]: recovered presentation problems
//   - [slog.LevelError]: fatal device paths, heap exhaustion, shader failures
func SetLogger(l *slog.Logger) {
	l = logging.OrNop(l)
	loggerPtr.Store(l)
	hal.SetLogger(l)
}

// Logger returns the current package logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
