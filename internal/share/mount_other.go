//go:build !windows

package share

import "errors"

// WNetMounter is a no-op stand-in used when cross-compiling or testing
// off Windows; the real implementation lives in mount_windows.go.
type WNetMounter struct{}

func (WNetMounter) Add(share, username, password string) error {
	return errors.New("share: WNetAddConnection2 is only available on Windows")
}

func (WNetMounter) Cancel(share string) error {
	return errors.New("share: WNetCancelConnection2 is only available on Windows")
}
