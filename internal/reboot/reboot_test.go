package reboot

import (
	"path/filepath"
	"testing"
)

type fakeRebooter struct {
	calls int
	err   error
}

func (f *fakeRebooter) RequestReboot() error {
	f.calls++
	return f.err
}

func TestRebootCancelDoesNotAdvanceCounter(t *testing.T) {
	r := &fakeRebooter{}
	h := New(filepath.Join(t.TempDir(), "reboot-state.json"), r)
	msg := h.Reboot(true)
	if msg == "" {
		t.Fatal("expected a status message")
	}
	if r.calls != 0 {
		t.Fatalf("expected no reboot requested when cancelled, got %d calls", r.calls)
	}
	if h.consecutive != 0 {
		t.Fatalf("expected counter to stay at 0 when cancelled, got %d", h.consecutive)
	}
}

func TestRebootRequestsAndPersists(t *testing.T) {
	r := &fakeRebooter{}
	path := filepath.Join(t.TempDir(), "reboot-state.json")
	h := New(path, r)
	h.Reboot(false)
	if r.calls != 1 {
		t.Fatalf("expected 1 reboot request, got %d", r.calls)
	}

	h2 := New(path, r)
	if h2.consecutive != 1 {
		t.Fatalf("expected persisted counter of 1, got %d", h2.consecutive)
	}
}

func TestRebootGivesUpAfterBound(t *testing.T) {
	r := &fakeRebooter{}
	h := New(filepath.Join(t.TempDir(), "reboot-state.json"), r)
	var last string
	for i := 0; i < maxConsecutiveReboots+2; i++ {
		last = h.Reboot(false)
	}
	if r.calls == maxConsecutiveReboots+2 {
		t.Fatal("expected handler to stop requesting reboots past the bound")
	}
	if last == "" {
		t.Fatal("expected a final status message even after giving up")
	}
}

func TestResetRebootNumber(t *testing.T) {
	r := &fakeRebooter{}
	h := New(filepath.Join(t.TempDir(), "reboot-state.json"), r)
	h.Reboot(false)
	h.ResetRebootNumber()
	if h.consecutive != 0 {
		t.Fatalf("expected counter reset to 0, got %d", h.consecutive)
	}
}
