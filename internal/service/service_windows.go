//go:build windows

// Package service provides Windows Service Control Manager integration.
// This allows the agent to run as a proper Windows service with
// Start, Stop, Interrogate, and Shutdown support.
package service

import (
	"context"
	"time"

	"golang.org/x/sys/windows/svc"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
)

const ServiceName = "WpkgGP"

// BrokerService implements svc.Handler for the Windows Service Control Manager.
// RunFunc starts the pipe daemon and blocks until ctx is cancelled; StopFunc
// is called once SCM asks the service to stop, and its return value (the
// connection count) is logged alongside the stop event.
type BrokerService struct {
	RunFunc  func(ctx context.Context) error
	StopFunc func() int64
}

// Execute is called by the Windows SCM. It manages the service lifecycle.
func (s *BrokerService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunFunc(ctx)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
	logging.Infof("[service] Wpkg-GP broker service running")

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				logging.Infof("[service] SCM %v requested", c.Cmd)
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				var connCount int64
				if s.StopFunc != nil {
					connCount = s.StopFunc()
				}
				select {
				case <-errCh:
				case <-time.After(15 * time.Second):
					logging.Errorf("[service] Graceful shutdown timed out after 15s")
				}
				logging.Infof("[service] stopped after processing %d connections", connCount)
				return false, 0
			}
		case err := <-errCh:
			if err != nil {
				logging.Errorf("[service] Agent exited with error: %v", err)
				return false, 1
			}
			return false, 0
		}
	}
}

// IsWindowsService returns true if the process is running as a Windows service.
func IsWindowsService() bool {
	inService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return inService
}

// Run starts the broker as a Windows service under SCM control.
func Run(handler *BrokerService) error {
	return svc.Run(ServiceName, handler)
}
