// Package blacklist implements the host blacklist gate: a flat text file
// beside the deployer script that excludes named hosts (or all hosts,
// via the "!all!" sentinel) from executing the deployer.
package blacklist

import (
	"bufio"
	"os"
	"strings"
)

// Allowed reports whether hostname is permitted to execute, based on the
// blacklist file at path. A missing file always allows execution. The
// comparison is case-insensitive; lines starting with '#' are comments.
func Allowed(path, hostname string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	hostname = strings.ToLower(hostname)
	blockAll := false
	var entries []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.ToLower(strings.TrimSpace(entry))
		if trimmed == "!all!" {
			blockAll = true
			break
		}
		if strings.HasPrefix(entry, "#") || entry == "" {
			continue
		}
		entries = append(entries, strings.ToLower(strings.TrimSpace(entry)))
	}

	if blockAll {
		return false
	}
	for _, e := range entries {
		if e == hostname {
			return false
		}
	}
	return true
}

// ScriptDir derives the directory a deployer command invokes its script
// from, splitting at the basename of the named script (e.g. "wpkg.js").
// Used to locate blacklist.txt alongside the deployer.
func ScriptDir(expandedCommand, scriptBasename string) string {
	idx := strings.Index(strings.ToLower(expandedCommand), strings.ToLower(scriptBasename))
	if idx < 0 {
		return ""
	}
	// Keep only the script token's own directory part, dropping any
	// interpreter and options (e.g. "cscript //nologo ") before it.
	prefix := expandedCommand[:idx]
	start, inQuote := 0, false
	for i, r := range prefix {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			start = i + 1
		}
	}
	return strings.TrimPrefix(prefix[start:], `"`)
}
