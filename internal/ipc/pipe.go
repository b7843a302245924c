// Package ipc implements the control daemon: a named-pipe server that
// authorizes callers via impersonation, dispatches the fixed command
// set (Execute, ExecuteNoReboot, ExecuteFromGPE, Query, Cancel,
// SetNetworkUser), and streams status frames back until the run
// finishes.
package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wpkg-gp/wpkgbroker/internal/blacklist"
	"github.com/wpkg-gp/wpkgbroker/internal/config"
	"github.com/wpkg-gp/wpkgbroker/internal/executor"
	"github.com/wpkg-gp/wpkgbroker/internal/logging"
	"github.com/wpkg-gp/wpkgbroker/internal/share"
)

// PipeName is the well-known named pipe the daemon listens on.
const PipeName = `\\.\pipe\WPKG`

// Authorizer decides whether the caller on conn may invoke a
// start/stop command, via impersonation on Windows.
type Authorizer interface {
	Authorize(conn net.Conn, cfg *config.Config) (allowed bool, callerSID string, err error)
}

// Rebooter is satisfied by internal/reboot.Handler.
type Rebooter interface {
	Reboot(cancel bool) string
	ResetRebootNumber()
}

// AuditLog is satisfied by internal/audit.Log.
type AuditLog interface {
	Begin(id, command, callerSID string)
	Finish(id string, exitCode, statusCode int)
}

// Server is the named-pipe control daemon.
type Server struct {
	cfg        *config.Config
	authorizer Authorizer
	connector  *share.Connector
	reboot     Rebooter
	audit      AuditLog
	hostname   string

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}

	connCount int64
}

// New builds a Server from its collaborators.
func New(cfg *config.Config, authz Authorizer, connector *share.Connector, reboot Rebooter, audit AuditLog, hostname string) *Server {
	return &Server{
		cfg:        cfg,
		authorizer: authz,
		connector:  connector,
		reboot:     reboot,
		audit:      audit,
		hostname:   hostname,
		quit:       make(chan struct{}),
	}
}

// Start begins listening. It returns once the listener is established;
// connections are served on background goroutines until Stop is called.
func (s *Server) Start() error {
	l, err := listen(PipeName)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", PipeName, err)
	}
	s.listener = l
	logging.Infof("[ipc] listening on %s", PipeName)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight connections to
// finish, then returns the number of connections served (for the
// service-stop event log message).
func (s *Server) Stop() int64 {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return atomic.LoadInt64(&s.connCount)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				logging.Errorf("[ipc] accept error: %v", err)
				return
			}
		}
		atomic.AddInt64(&s.connCount, 1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	raw, err := readMessage(conn)
	if err != nil {
		logging.Infof("[ipc] client disconnected before sending a command: %v", err)
		return
	}

	w := &frameWriter{conn: conn}
	s.dispatch(conn, strings.TrimRight(string(raw), "\x00"), w)
}

func (s *Server) dispatch(conn net.Conn, command string, w *frameWriter) {
	switch {
	case command == "Execute", command == "ExecuteNoReboot", command == "ExecuteFromGPE":
		s.dispatchExecute(conn, command, w)
	case command == "Query":
		s.dispatchQuery(conn, w)
	case command == "Cancel":
		s.dispatchCancel(conn, w)
	case strings.HasPrefix(command, "SetNetworkUser "):
		s.dispatchSetNetworkUser(command, w)
	default:
		w.Write("203 Unknown command: " + command)
	}
}

func (s *Server) authorize(conn net.Conn) (bool, string) {
	allowed, sid, err := s.authorizer.Authorize(conn, s.cfg)
	if err != nil {
		logging.Errorf("[ipc] authorization check failed: %v", err)
		return false, ""
	}
	return allowed, sid
}

func (s *Server) dispatchExecute(conn net.Conn, command string, w *frameWriter) {
	rebootCancel := command == "ExecuteNoReboot"
	if executor.IsRunning() {
		w.Write("201 Info: WPKG is already running a task.")
		return
	}
	if command == "ExecuteFromGPE" && s.cfg.DisableAtBootUp {
		w.Write("200 Execution at startup is disabled, will not run")
		return
	}
	allowed, callerSID := s.authorize(conn)
	if !allowed {
		w.Write("200 Info: You are not authorized to execute Wpkg-GP")
		return
	}

	opts := s.options()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditID := uuid.NewString()
	if s.audit != nil {
		s.audit.Begin(auditID, command, callerSID)
	}

	run, err := executor.Execute(ctx, opts, w, rebootCancel, blacklist.Allowed)
	if err != nil {
		logging.Errorf("[ipc] execute failed: %v", err)
	}
	if s.audit != nil {
		s.audit.Finish(auditID, exitCodeOf(run), statusCodeOf(run, err))
	}
}

func (s *Server) dispatchQuery(conn net.Conn, w *frameWriter) {
	if executor.IsRunning() {
		w.Write("201 Info: WPKG is already running a task.")
		return
	}
	allowed, callerSID := s.authorize(conn)
	if !allowed {
		w.Write("200 Info: You are not authorized to execute Wpkg-GP")
		return
	}
	opts := s.options()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditID := uuid.NewString()
	if s.audit != nil {
		s.audit.Begin(auditID, "Query", callerSID)
	}

	run, err := executor.Query(ctx, opts, w, blacklist.Allowed)
	if err != nil {
		logging.Errorf("[ipc] query failed: %v", err)
	}
	if s.audit != nil {
		s.audit.Finish(auditID, exitCodeOf(run), statusCodeOf(run, err))
	}
}

func exitCodeOf(run *executor.Run) int {
	if run == nil {
		return -1
	}
	return run.ExitCode
}

func statusCodeOf(run *executor.Run, err error) int {
	switch {
	case err != nil:
		return 200
	case run == nil:
		return 201
	default:
		return 0
	}
}

func (s *Server) dispatchCancel(conn net.Conn, w *frameWriter) {
	if allowed, _ := s.authorize(conn); !allowed {
		w.Write("200 Info: You are not authorized to execute Wpkg-GP")
		return
	}
	if executor.Cancel() {
		w.Write("105 Cancel called, WPKG process was killed")
	} else {
		w.Write("202 Cancel called, WPKG process was not running")
	}
}

func (s *Server) dispatchSetNetworkUser(command string, w *frameWriter) {
	fields := strings.Fields(strings.TrimPrefix(command, "SetNetworkUser "))
	if len(fields) != 2 {
		w.Write("200 Error: SetNetworkUser requires a username and password")
		return
	}
	if s.connector != nil {
		s.connector.SetCredentials(fields[0], fields[1])
	}
	s.cfg.WpkgNetworkUsername = fields[0]
	s.cfg.WpkgNetworkPassword = fields[1]
}

func (s *Server) options() executor.Options {
	normalized := executor.NormalizeCommand(s.cfg.WpkgCommand)
	scriptDir := blacklist.ScriptDir(normalized, executor.ScriptBasename(normalized))
	return executor.Options{
		RawCommand:           s.cfg.WpkgCommand,
		EnvironmentVariables: s.cfg.EnvironmentVariables,
		ShowActivity:         s.cfg.WpkgActivityIndicator,
		BlacklistPath:        s.cfg.BlacklistPath(scriptDir),
		Hostname:             s.hostname,
		Share:                s.connector,
		Reboot:               s.reboot,
	}
}

// frameWriter adapts a net.Conn into executor.Writer, swallowing
// write-on-closed-pipe errors.
type frameWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *frameWriter) Write(frame string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.conn.Write([]byte(frame + "\n")); err != nil {
		logging.Errorf("[ipc] write on pipe failed (client likely disconnected): %v", err)
	}
}

// readMessage reads one full message-mode frame from conn, looping on
// ERROR_MORE_DATA-equivalent short reads the way the original pipe
// server does, via bufio against the message-mode connection winio
// provides.
func readMessage(conn net.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	reader := bufio.NewReader(conn)
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		if n < len(chunk) {
			return buf, nil
		}
	}
}
