//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listen opens the named pipe, world read/write with owner-only modify,
// mirroring the original's CreatePipeSecurityObject DACL (Everyone:
// generic read/write; Creator Owner: full control).
func listen(pipeName string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GRGW;;;WD)(A;;GA;;;CO)",
		MessageMode:        true,
		InputBufferSize:    4096,
		OutputBufferSize:   4096,
	}
	return winio.ListenPipe(pipeName, cfg)
}
