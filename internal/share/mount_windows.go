//go:build windows

package share

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	mpr                     = syscall.NewLazyDLL("mpr.dll")
	procWNetAddConnection2W = mpr.NewProc("WNetAddConnection2W")
	procWNetCancelConnectionW = mpr.NewProc("WNetCancelConnection2W")
)

const resourcetypeDisk = 0x00000001

// netResource mirrors the Win32 NETRESOURCEW structure, fields beyond
// lpRemoteName are unused for a disk-type, no-local-name connection.
type netResource struct {
	dwScope       uint32
	dwType        uint32
	dwDisplayType uint32
	dwUsage       uint32
	lpLocalName   *uint16
	lpRemoteName  *uint16
	lpComment     *uint16
	lpProvider    *uint16
}

// WNetMounter connects/disconnects network shares via mpr.dll, with no
// drive-letter mapping (matching the original's lpLocalName=nil).
type WNetMounter struct{}

func (WNetMounter) Add(share, username, password string) error {
	remote, err := syscall.UTF16PtrFromString(share)
	if err != nil {
		return err
	}
	var userPtr, passPtr *uint16
	if username != "" {
		userPtr, err = syscall.UTF16PtrFromString(username)
		if err != nil {
			return err
		}
	}
	if password != "" {
		passPtr, err = syscall.UTF16PtrFromString(password)
		if err != nil {
			return err
		}
	}

	nr := netResource{
		dwType:       resourcetypeDisk,
		lpRemoteName: remote,
	}

	ret, _, _ := procWNetAddConnection2W.Call(
		uintptr(unsafe.Pointer(&nr)),
		uintptrOrZero(passPtr),
		uintptrOrZero(userPtr),
		0,
	)
	if ret != 0 {
		return &MountError{Code: int(ret), Err: fmt.Errorf("WNetAddConnection2 failed: %w", syscall.Errno(ret))}
	}
	return nil
}

func (WNetMounter) Cancel(share string) error {
	remote, err := syscall.UTF16PtrFromString(share)
	if err != nil {
		return err
	}
	ret, _, _ := procWNetCancelConnectionW.Call(
		uintptr(unsafe.Pointer(remote)),
		1, // CONNECT_UPDATE_PROFILE
		1, // force
	)
	if ret != 0 {
		return &MountError{Code: int(ret), Err: fmt.Errorf("WNetCancelConnection2 failed: %w", syscall.Errno(ret))}
	}
	return nil
}

func uintptrOrZero(p *uint16) uintptr {
	if p == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(p))
}
