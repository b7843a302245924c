// Package logging provides a thin level filter over the standard
// library's log package, driven by the WpkgVerbosity config key. It
// stays within plain log.Std-style logging rather than pulling in a
// structured-logging library: the filter is the only thing
// WpkgVerbosity needs.
package logging

import (
	"log"
	"sync/atomic"
)

// Level mirrors WpkgServer.py's verbosity-to-logging-level mapping.
type Level int32

const (
	LevelCritical Level = iota
	LevelError
	LevelInfo
	LevelDebug
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelCritical))
}

// SetLevel maps a WpkgVerbosity config value (3=debug, 2=info, 1=error,
// anything else=critical-only) to the active filtering level.
func SetLevel(verbosity int) {
	switch verbosity {
	case 3:
		current.Store(int32(LevelDebug))
	case 2:
		current.Store(int32(LevelInfo))
	case 1:
		current.Store(int32(LevelError))
	default:
		current.Store(int32(LevelCritical))
	}
}

func enabled(l Level) bool {
	return Level(current.Load()) >= l
}

// Debugf logs at debug level (WpkgVerbosity 3 only).
func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		log.Printf(format, args...)
	}
}

// Infof logs at info level (WpkgVerbosity 2 or 3).
func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		log.Printf(format, args...)
	}
}

// Errorf logs at error level (WpkgVerbosity 1, 2, or 3).
func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		log.Printf(format, args...)
	}
}
