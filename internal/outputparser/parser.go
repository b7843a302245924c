// Package outputparser implements the stdout line-cleaning contract used
// while an Execute run is in progress: each child stdout line is trimmed
// and, if non-empty, becomes the next formatted progress line.
package outputparser

import "strings"

// Parser tracks the most recently formatted progress line and whether
// the most recent ParseLine call changed it.
type Parser struct {
	current string
	updated bool
}

// New returns a Parser ready to consume lines.
func New() *Parser {
	return &Parser{}
}

// ParseLine consumes one raw child stdout line.
func (p *Parser) ParseLine(line string) {
	trimmed := strings.TrimRight(line, "\r\n")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" || trimmed == p.current {
		p.updated = false
		return
	}
	p.current = trimmed
	p.updated = true
}

// Updated reports whether the last ParseLine call produced a new
// formatted line worth emitting.
func (p *Parser) Updated() bool {
	return p.updated
}

// GetFormattedLine returns the current formatted progress line.
func (p *Parser) GetFormattedLine() string {
	return p.current
}

// Reset clears parser state between runs.
func (p *Parser) Reset() {
	p.current = ""
	p.updated = false
}

// queryAction maps a deployer Action: value to its short form used in
// "103 TASK: <action>" status frames.
var queryAction = map[string]string{
	"Installation pending": "install",
	"Upgrade pending":       "update",
	"Downgrade pending":     "downgrade",
	"Remove pending":        "remove",
}

// queryExcludes lists line prefixes dropped entirely from Query output.
var queryExcludes = []string{
	"ID:", "Reboot:", "Execute:", "Priority:", "Status:", "Revision (old):",
}

// QueryTask is one (name, version, action) triple recovered from a Query
// run's cleaned output.
type QueryTask struct {
	Name    string
	Version string
	Action  string
}

// CleanQueryLines applies the Query-path line cleaning rule: leading
// whitespace is stripped, then any run of 2+ whitespace characters is
// collapsed to nothing (not to a single space), matching the original's
// `re.sub(r'\s{2,}', '', line)`. Lines matching an excludes prefix, and
// lines that become empty, are dropped. Remaining lines are translated
// through the Revision:/Revision (new):/Action: rules; anything else
// passes through unchanged as a package name.
func CleanQueryLines(rawLines []string) []string {
	var cleaned []string
	for _, line := range rawLines {
		line = strings.TrimLeft(line, " \t")
		line = collapseRuns(line)
		if line == "" {
			continue
		}
		if hasAnyPrefix(line, queryExcludes) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Revision (new):"):
			cleaned = append(cleaned, strings.TrimSpace(strings.TrimPrefix(line, "Revision (new):")))
		case strings.HasPrefix(line, "Revision:"):
			cleaned = append(cleaned, strings.TrimSpace(strings.TrimPrefix(line, "Revision:")))
		case strings.HasPrefix(line, "Action:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Action:"))
			if mapped, ok := queryAction[value]; ok {
				cleaned = append(cleaned, mapped)
			} else {
				cleaned = append(cleaned, value)
			}
		default:
			cleaned = append(cleaned, line)
		}
	}
	return cleaned
}

// GroupQueryTasks groups cleaned lines into consecutive triples of
// (name, version, action), dropping any trailing partial group.
func GroupQueryTasks(cleaned []string) []QueryTask {
	var tasks []QueryTask
	for i := 0; i+3 <= len(cleaned); i += 3 {
		tasks = append(tasks, QueryTask{
			Name:    cleaned[i],
			Version: cleaned[i+1],
			Action:  cleaned[i+2],
		})
	}
	return tasks
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// collapseRuns removes every run of 2 or more whitespace characters from
// s, leaving single whitespace characters untouched. This mirrors
// Python's `re.sub(r'\s{2,}', '', line)`, which deletes the run rather
// than collapsing it to one space.
func collapseRuns(s string) string {
	var b strings.Builder
	runLen := 0
	flush := func(buffered []byte) {
		if runLen == 1 {
			b.Write(buffered)
		}
	}
	var buffered []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			runLen++
			buffered = append(buffered, c)
			continue
		}
		flush(buffered)
		runLen = 0
		buffered = nil
		b.WriteByte(c)
	}
	flush(buffered)
	return b.String()
}
