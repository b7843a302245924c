package blacklist

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAllowedMissingFile(t *testing.T) {
	dir := t.TempDir()
	if !Allowed(filepath.Join(dir, "nope.txt"), "HOST1") {
		t.Fatal("expected allow when blacklist file is missing")
	}
}

func TestAllowedHostnameBlocked(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blacklist.txt", "# comment\nHOST1\nhost2\n")
	if Allowed(path, "host1") {
		t.Fatal("expected host1 to be blocked (case-insensitive match)")
	}
	if Allowed(path, "HOST2") {
		t.Fatal("expected HOST2 to be blocked (case-insensitive match)")
	}
	if !Allowed(path, "host3") {
		t.Fatal("expected host3 to be allowed")
	}
}

func TestAllowedAllSentinel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blacklist.txt", "host9\n!ALL!\nhost10\n")
	if Allowed(path, "anything") {
		t.Fatal("expected !all! sentinel to block every host")
	}
}

func TestScriptDir(t *testing.T) {
	got := ScriptDir(`C:\wpkg\wpkg.js /noreboot`, "wpkg.js")
	want := `C:\wpkg\`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
