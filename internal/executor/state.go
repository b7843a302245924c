package executor

import (
	"os/exec"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// runState is the process-wide single-flight guard: at most one deployer
// child process may be in flight at a time, shared across every pipe
// connection the daemon serves.
type runState struct {
	mu       sync.Mutex
	running  bool
	cmd      *exec.Cmd
	started  time.Time
	lastLine string
}

var state = &runState{}

// tryStart reports whether the run was claimed (false means busy).
func (s *runState) tryStart(cmd *exec.Cmd, started time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.cmd = cmd
	s.started = started
	s.lastLine = ""
	return true
}

func (s *runState) setLastLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLine = line
}

func (s *runState) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.cmd = nil
}

// IsRunning reports whether a deployer child process is currently in
// flight.
func IsRunning() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.running
}

// Cancel kills the in-flight child process, if any, and reports whether
// one was actually running.
func Cancel() bool {
	state.mu.Lock()
	cmd := state.cmd
	running := state.running
	state.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		return false
	}
	_ = cmd.Process.Kill()
	return true
}

// Status returns a short human-readable summary of the in-flight run,
// for the otherwise-unused "get status while busy" path (see Open
// Questions in SPEC_FULL.md).
func Status() string {
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.running {
		return "idle"
	}
	since := humanize.Time(state.started)
	if state.lastLine == "" {
		return "running, started " + since
	}
	return state.lastLine + " (started " + since + ")"
}
