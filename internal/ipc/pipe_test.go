package ipc

import (
	"net"
	"testing"

	"github.com/wpkg-gp/wpkgbroker/internal/config"
)

type fakeAuthorizer struct {
	allow bool
}

func (f fakeAuthorizer) Authorize(conn net.Conn, cfg *config.Config) (bool, string, error) {
	return f.allow, "S-1-5-21-TEST", nil
}

func TestDispatchUnknownCommand(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(&config.Config{}, fakeAuthorizer{allow: true}, nil, nil, nil, "HOST1")

	done := make(chan struct{})
	go func() {
		s.dispatch(server, "Bogus", &frameWriter{conn: server})
		close(done)
	}()

	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(buf[:n])
	want := "203 Unknown command: Bogus\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	<-done
}

func TestDispatchUnauthorizedExecute(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(&config.Config{}, fakeAuthorizer{allow: false}, nil, nil, nil, "HOST1")

	done := make(chan struct{})
	go func() {
		s.dispatch(server, "Execute", &frameWriter{conn: server})
		close(done)
	}()

	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(buf[:n])
	want := "200 Info: You are not authorized to execute Wpkg-GP\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	<-done
}

func TestDispatchCancelWhenIdle(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(&config.Config{}, fakeAuthorizer{allow: true}, nil, nil, nil, "HOST1")

	done := make(chan struct{})
	go func() {
		s.dispatch(server, "Cancel", &frameWriter{conn: server})
		close(done)
	}()

	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(buf[:n])
	want := "202 Cancel called, WPKG process was not running\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	<-done
}

func TestDispatchSetNetworkUser(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	cfg := &config.Config{}
	s := New(cfg, fakeAuthorizer{allow: true}, nil, nil, nil, "HOST1")

	done := make(chan struct{})
	go func() {
		s.dispatch(server, "SetNetworkUser alice hunter2", &frameWriter{conn: server})
		close(done)
		server.Close()
	}()

	<-done
	if cfg.WpkgNetworkUsername != "alice" || cfg.WpkgNetworkPassword != "hunter2" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
