//go:build windows

// Package eventlog writes Wpkg-GP's service lifecycle messages to the
// Windows Application event log, mirroring the original service's
// servicemanager.LogMsg calls around service start/stop.
package eventlog

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/windows/svc/eventlog"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
)

const sourceName = "WpkgGP"

// Writer reports service lifecycle events to the Windows event log.
type Writer struct {
	log *eventlog.Log
}

// Open registers the event source if needed and opens a handle to it.
// Failure to open is non-fatal: callers fall back to plain log output.
func Open() *Writer {
	if err := eventlog.InstallAsEventCreate(sourceName, eventlog.Info|eventlog.Warning|eventlog.Error); err != nil {
		logging.Errorf("[eventlog] install event source: %v", err)
	}
	l, err := eventlog.Open(sourceName)
	if err != nil {
		logging.Errorf("[eventlog] open event source failed, falling back to log output: %v", err)
		return &Writer{}
	}
	return &Writer{log: l}
}

// Close releases the event log handle.
func (w *Writer) Close() {
	if w.log != nil {
		w.log.Close()
	}
}

// Started reports that the broker service has entered the running state.
func (w *Writer) Started() {
	w.info(1, "Wpkg-GP broker service started")
}

// Stopped reports that the broker service has shut down, after serving
// connCount pipe connections.
func (w *Writer) Stopped(connCount int64) {
	w.info(2, "Wpkg-GP broker service stopped after processing "+strconv.FormatInt(connCount, 10)+" connections")
}

// Errorf reports an operational error.
func (w *Writer) Errorf(format string, args ...any) {
	w.err(3, format, args...)
}

func (w *Writer) info(eventID uint32, msg string) {
	if w.log == nil {
		logging.Infof("[eventlog] %s", msg)
		return
	}
	if err := w.log.Info(eventID, msg); err != nil {
		logging.Errorf("[eventlog] write failed: %v", err)
	}
}

func (w *Writer) err(eventID uint32, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if w.log == nil {
		logging.Errorf("[eventlog] %s", msg)
		return
	}
	if err := w.log.Error(eventID, msg); err != nil {
		logging.Errorf("[eventlog] write failed: %v", err)
	}
}
