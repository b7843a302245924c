//go:build !windows

// Package service provides stubs for non-Windows systems.
package service

import "context"

const ServiceName = "WpkgGP"

// BrokerService is a no-op on non-Windows.
type BrokerService struct {
	RunFunc  func(ctx context.Context) error
	StopFunc func() int64
}

// IsWindowsService always returns false on non-Windows.
func IsWindowsService() bool { return false }

// Run is a no-op on non-Windows.
func Run(handler *BrokerService) error { return nil }
