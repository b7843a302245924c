//go:build !windows

package ipcclient

import (
	"context"
	"errors"
	"net"
	"time"
)

func dialWithRetry(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	return nil, errors.New("ipcclient: named pipes are only available on Windows")
}
