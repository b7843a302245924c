package audit

import (
	"path/filepath"
	"testing"
)

func TestBeginFinishRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	l, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	l.Begin("run-1", "Execute", "S-1-5-32-544")
	l.Finish("run-1", 0, 100)

	records, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Command != "Execute" {
		t.Fatalf("unexpected command: %q", records[0].Command)
	}
	if records[0].ExitCode != 0 || records[0].StatusCode != 100 {
		t.Fatalf("unexpected outcome: %+v", records[0])
	}
}
