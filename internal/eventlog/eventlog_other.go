//go:build !windows

// Package eventlog is a stub on non-Windows systems, where the
// Application event log does not exist.
package eventlog

import "github.com/wpkg-gp/wpkgbroker/internal/logging"

// Writer falls back to plain log output.
type Writer struct{}

// Open returns a Writer that writes through the logging package.
func Open() *Writer { return &Writer{} }

// Close is a no-op.
func (w *Writer) Close() {}

// Started logs the broker start.
func (w *Writer) Started() { logging.Infof("[eventlog] Wpkg-GP broker service started") }

// Stopped logs the broker stop.
func (w *Writer) Stopped(connCount int64) {
	logging.Infof("[eventlog] Wpkg-GP broker service stopped after processing %d connections", connCount)
}

// Errorf logs an operational error.
func (w *Writer) Errorf(format string, args ...any) { logging.Errorf("[eventlog] "+format, args...) }
