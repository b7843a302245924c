//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/wpkg-gp/wpkgbroker/internal/config"
	"github.com/wpkg-gp/wpkgbroker/internal/wmi"
)

// Well-known group SIDs, from
// http://msdn.microsoft.com/en-us/library/aa379649.aspx
const (
	sidLocal          = "S-1-2-0"
	sidAdministrators = "S-1-5-32-544"
)

var (
	kernel32                        = windows.NewLazySystemDLL("kernel32.dll")
	procImpersonateNamedPipeClient  = kernel32.NewProc("ImpersonateNamedPipeClient")
	procRevertToSelf                = kernel32.NewProc("RevertToSelf")
)

// ImpersonationAuthorizer implements Authorizer via
// ImpersonateNamedPipeClient, enumerating the impersonated thread
// token's group SIDs and applying the Administrators / non-admins /
// local-user rule.
type ImpersonationAuthorizer struct{}

// Authorize impersonates the caller on conn just long enough to read
// its token's group memberships, then reverts, and finally applies the
// authorization rule from cfg.
func (ImpersonationAuthorizer) Authorize(conn net.Conn, cfg *config.Config) (bool, string, error) {
	handle, ok := pipeHandle(conn)
	if !ok {
		return false, "", fmt.Errorf("could not extract pipe handle from connection")
	}

	r1, _, err := procImpersonateNamedPipeClient.Call(uintptr(handle))
	if r1 == 0 {
		return false, "", fmt.Errorf("ImpersonateNamedPipeClient failed: %w", err)
	}
	defer procRevertToSelf.Call()

	var token windows.Token
	if err := windows.OpenThreadToken(windows.CurrentThread(), windows.TOKEN_QUERY, true, &token); err != nil {
		return false, "", fmt.Errorf("OpenThreadToken failed: %w", err)
	}
	defer token.Close()

	isLocalAdmin, isLocalUser, callerSID := classifyToken(token)

	allowed := false
	switch {
	case isLocalAdmin:
		allowed = true
	case cfg.WpkgExecuteByNonAdmins:
		allowed = true
	case cfg.WpkgExecuteByLocalUsers && isLocalUser:
		allowed = true
	}

	// A local user classification via SID alone can miss service
	// accounts invoking from non-interactive sessions; fall back to
	// WMI's Win32_UserAccount.LocalAccount when the SID check found
	// nothing and the config would otherwise allow local users.
	if !allowed && !isLocalUser && cfg.WpkgExecuteByLocalUsers && callerSID != "" {
		if wmiSaysLocal(callerSID) {
			allowed = true
		}
	}

	return allowed, callerSID, nil
}

func classifyToken(token windows.Token) (isLocalAdmin, isLocalUser bool, callerSID string) {
	groups, err := token.GetTokenGroups()
	if err != nil {
		return false, false, ""
	}

	adminSID, _ := windows.StringToSid(sidAdministrators)
	localSID, _ := windows.StringToSid(sidLocal)

	for _, g := range groups.AllGroups() {
		if g.Sid == nil {
			continue
		}
		sidStr := g.Sid.String()
		if sidStr == "" {
			continue
		}
		if adminSID != nil && g.Sid.Equals(adminSID) {
			isLocalAdmin = true
		}
		if localSID != nil && g.Sid.Equals(localSID) {
			isLocalUser = true
		}
	}

	if user, err := token.GetTokenUser(); err == nil && user.User.Sid != nil {
		callerSID = user.User.Sid.String()
	}
	return isLocalAdmin, isLocalUser, callerSID
}

func wmiSaysLocal(sid string) bool {
	q, err := wmi.Query(context.Background(), `root\cimv2`,
		fmt.Sprintf("SELECT LocalAccount FROM Win32_UserAccount WHERE SID = '%s'", sid))
	if err != nil || len(q) == 0 {
		return false
	}
	local, ok := wmi.GetPropertyBool(q[0], "LocalAccount")
	return ok && local
}

// pipeHandle extracts the raw Win32 handle from an opaque go-winio
// connection via reflection, since the library does not expose it
// directly.
func pipeHandle(conn net.Conn) (windows.Handle, bool) {
	return findHandleRecursive(reflect.ValueOf(conn), 0)
}

func findHandleRecursive(v reflect.Value, depth int) (windows.Handle, bool) {
	if depth > 5 {
		return 0, false
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, false
	}

	if handleField := v.FieldByName("handle"); handleField.IsValid() {
		kind := handleField.Kind()
		if kind == reflect.Uintptr || kind == reflect.Uint || kind == reflect.Uint64 {
			if handleField.CanAddr() {
				ptr := unsafe.Pointer(handleField.UnsafeAddr())
				val := reflect.NewAt(handleField.Type(), ptr).Elem()
				return windows.Handle(val.Uint()), true
			}
			if handleField.CanUint() {
				return windows.Handle(handleField.Uint()), true
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		if handle, found := findHandleRecursive(v.Field(i), depth+1); found {
			return handle, true
		}
	}
	return 0, false
}
