// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

import (
	"log/slog"

	"github.com/gogpu/visbuffer/internal/logging"
)

// SetLogger configures the logger for visbuffer and all its sub-packages.
// By default, visbuffer produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by visbuffer:
//   - [slog.LevelDebug]: pipelines compiled, passes encoded
//   - [slog.LevelInfo]: lifecycle events (plugin created, cache invalidated, shader reloaded)
//   - [slog.LevelWarn]: passes skipped, items dropped, draws failed
//
// Example:
//
//	visbuffer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// Logger returns the current logger used by visbuffer.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
