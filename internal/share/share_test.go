package share

import (
	"context"
	"testing"
)

func TestExtractShare(t *testing.T) {
	got := ExtractShare(`cscript \\fileserver\wpkg\wpkg.js /noreboot`)
	want := `\\fileserver\wpkg`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExtractShareNone(t *testing.T) {
	if got := ExtractShare(`C:\local\wpkg.js`); got != "" {
		t.Fatalf("expected no share, got %q", got)
	}
}

type fakeMounter struct {
	addErrs []error
	adds    int
	cancels int
}

func (f *fakeMounter) Add(share, username, password string) error {
	var err error
	if f.adds < len(f.addErrs) {
		err = f.addErrs[f.adds]
	}
	f.adds++
	return err
}

func (f *fakeMounter) Cancel(share string) error {
	f.cancels++
	return nil
}

func TestConnectNoUsernameSkipsMount(t *testing.T) {
	m := &fakeMounter{}
	c := New(`\\host\share\wpkg.js`, Config{}, m)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.adds != 0 {
		t.Fatalf("expected no mount attempts without credentials, got %d", m.adds)
	}
}

func TestConnectRetriesOnAlreadyConnected(t *testing.T) {
	m := &fakeMounter{addErrs: []error{
		&MountError{Code: errSessionCredentialConflict, Err: errConnectExhausted},
		nil,
	}}
	cfg := Config{NetworkUsername: "svc", NetworkPassword: "pw", ConnectionTries: 3}
	c := New(`\\host\share\wpkg.js`, cfg, m)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.adds != 2 {
		t.Fatalf("expected 2 add attempts, got %d", m.adds)
	}
	if m.cancels != 1 {
		t.Fatalf("expected 1 disconnect from the stale connection, got %d", m.cancels)
	}
}

func TestConnectLogonFailureFallsBackToServiceIdentity(t *testing.T) {
	m := &fakeMounter{addErrs: []error{
		&MountError{Code: 1326, Err: errConnectExhausted},
		nil,
	}}
	cfg := Config{NetworkUsername: "baduser", NetworkPassword: "badpw", ConnectionTries: 3}
	c := New(`\\host\share\wpkg.js`, cfg, m)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.cfg.NetworkUsername != "" {
		t.Fatalf("expected credentials cleared after logon failure, got %q", c.cfg.NetworkUsername)
	}
}
