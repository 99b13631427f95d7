// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/compositor/internal/logging"
)

// loggerPtr stores the package logger. Accessed atomically so that
// SetLogger can be called concurrently with engine creation.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger configures the logger handed to engines created afterwards.
// By default the compositor produces no log output. Pass nil to restore
// the silent default.
//
// Log levels used by the compositor:
//   - [slog.LevelDebug]: per-frame diagnostics (descriptor counts, pool recycling)
//   - [slog.LevelInfo]: lifecycle events (window added, swapchain created)
//   - [slog.LevelWarn]: recoverable failures (surface loss, skipped frames)
//   - [slog.LevelError]: scheduler halts
//
// Example:
//
//	compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logging.OrNop(l))
}

// Logger returns the current package logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
