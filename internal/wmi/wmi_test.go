// Package wmi provides helpers for Windows Management Instrumentation queries.
package wmi

import (
	"context"
	"runtime"
	"testing"
)

func TestQueryResultPropertyHelpers(t *testing.T) {
	result := QueryResult{
		"StringProp": "value",
		"BoolProp":   true,
		"IntProp":    int32(42),
	}

	// Test bool property
	if val, ok := GetPropertyBool(result, "BoolProp"); !ok || !val {
		t.Errorf("expected true, got %v, ok=%v", val, ok)
	}

	// Test missing bool property
	if _, ok := GetPropertyBool(result, "Missing"); ok {
		t.Error("expected ok=false for missing property")
	}

	// Test wrong type for bool
	if _, ok := GetPropertyBool(result, "StringProp"); ok {
		t.Error("expected ok=false for wrong type")
	}

	// Case-insensitive lookup
	if val, ok := GetPropertyBool(result, "boolprop"); !ok || !val {
		t.Errorf("expected case-insensitive match to find true, got %v, ok=%v", val, ok)
	}
}

func TestQueryOnNonWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping non-Windows test on Windows")
	}

	ctx := context.Background()

	// Query should fail on non-Windows
	_, err := Query(ctx, "root\\CIMV2", "SELECT * FROM Win32_ComputerSystem")
	if err == nil {
		t.Error("expected error on non-Windows platform")
	}
}
