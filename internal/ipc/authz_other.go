//go:build !windows

package ipc

import (
	"errors"
	"net"

	"github.com/wpkg-gp/wpkgbroker/internal/config"
)

// ImpersonationAuthorizer is only meaningful on Windows; elsewhere every
// caller is denied, since impersonation-based authorization cannot be
// performed.
type ImpersonationAuthorizer struct{}

func (ImpersonationAuthorizer) Authorize(conn net.Conn, cfg *config.Config) (bool, string, error) {
	return false, "", errors.New("ipc: impersonation-based authorization is only available on Windows")
}
