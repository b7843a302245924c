//go:build windows

package reboot

import "golang.org/x/sys/windows"

// SystemRebooter requests a reboot via the Windows ExitWindowsEx API.
type SystemRebooter struct{}

func (SystemRebooter) RequestReboot() error {
	return windows.ExitWindowsEx(windows.EWX_REBOOT|windows.EWX_FORCE, 0)
}
