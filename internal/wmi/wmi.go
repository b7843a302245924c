// Package wmi provides helpers for Windows Management Instrumentation queries.
//
// This package uses the go-ole library to execute WMI queries on Windows.
// On non-Windows platforms, Query returns an error.
package wmi

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// QueryResult represents a single WMI object result as a map of property names to values
type QueryResult map[string]interface{}

// Query executes a WMI query and returns the results.
//
// namespace: WMI namespace (e.g., "root\\CIMV2", "root\\Microsoft\\Windows\\Defender")
// query: WQL query string (e.g., "SELECT * FROM Win32_ComputerSystem")
//
// Returns a slice of QueryResult maps, one per returned WMI object.
func Query(ctx context.Context, namespace, query string) ([]QueryResult, error) {
	if runtime.GOOS != "windows" {
		return nil, fmt.Errorf("WMI queries only supported on Windows")
	}

	return queryWindows(ctx, namespace, query)
}

// GetPropertyBool extracts a boolean property from a QueryResult
// Uses case-insensitive property name matching
func GetPropertyBool(result QueryResult, name string) (bool, bool) {
	val, ok := getPropertyValue(result, name)
	if !ok {
		return false, false
	}
	bval, ok := val.(bool)
	return bval, ok
}

// getPropertyValue performs case-insensitive property lookup
func getPropertyValue(result QueryResult, name string) (interface{}, bool) {
	// Try exact match first
	if val, ok := result[name]; ok {
		return val, true
	}
	// Try case-insensitive match
	nameLower := strings.ToLower(name)
	for k, v := range result {
		if strings.ToLower(k) == nameLower {
			return v, true
		}
	}
	return nil, false
}
