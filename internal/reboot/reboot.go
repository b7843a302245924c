// Package reboot implements the reboot-request handler contract left
// otherwise unspecified by the deployer's exit-code protocol: when the
// deployer exits with the reboot sentinel, the handler decides whether
// to actually schedule a reboot or defer, and persists a retry counter
// across daemon restarts so it can eventually give up.
package reboot

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
)

// maxConsecutiveReboots bounds how many times in a row the handler will
// request a reboot without an intervening successful non-reboot run
// before giving up and reporting an error instead.
const maxConsecutiveReboots = 5

// Rebooter performs the platform reboot request; swapped out in tests.
type Rebooter interface {
	RequestReboot() error
}

type marker struct {
	ConsecutiveReboots int `json:"consecutive_reboots"`
}

// Handler tracks and persists the reboot-retry counter.
type Handler struct {
	mu         sync.Mutex
	path       string
	rebooter   Rebooter
	consecutive int
}

// New loads any persisted counter at path, defaulting to zero.
func New(path string, r Rebooter) *Handler {
	h := &Handler{path: path, rebooter: r}
	h.load()
	return h
}

func (h *Handler) load() {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		logging.Errorf("[reboot] failed to parse %s: %v", h.path, err)
		return
	}
	h.consecutive = m.ConsecutiveReboots
}

func (h *Handler) save() {
	data, err := json.Marshal(marker{ConsecutiveReboots: h.consecutive})
	if err != nil {
		return
	}
	if err := os.WriteFile(h.path, data, 0644); err != nil {
		logging.Errorf("[reboot] failed to persist %s: %v", h.path, err)
	}
}

// Reboot handles the deployer's reboot-sentinel exit code. If cancel is
// true, the caller asked not to reboot (ExecuteNoReboot) and the
// counter is not advanced. Otherwise the handler increments the
// consecutive-reboot counter and, unless the bound has been exceeded,
// requests a reboot. It returns the status frame to emit.
func (h *Handler) Reboot(cancel bool) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cancel {
		return "200 Info: Deployer requested a reboot, but reboot was cancelled for this run."
	}

	h.consecutive++
	h.save()

	if h.consecutive > maxConsecutiveReboots {
		logging.Errorf("[reboot] giving up after %d consecutive reboot requests", h.consecutive)
		return "200 Error: Deployer has requested a reboot too many times in a row; giving up."
	}

	if err := h.rebooter.RequestReboot(); err != nil {
		logging.Errorf("[reboot] failed to request reboot: %v", err)
		return "200 Error: Deployer requested a reboot, but the reboot could not be scheduled."
	}
	return "100 Info: Deployer requested a reboot, reboot has been scheduled."
}

// ResetRebootNumber clears the consecutive-reboot counter after a
// successful non-reboot run.
func (h *Handler) ResetRebootNumber() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consecutive == 0 {
		return
	}
	h.consecutive = 0
	h.save()
}
