// Package executor assembles and runs the deployer (wpkg.js via cscript)
// child process, handing its output back to callers as a line-oriented
// stream, and interprets its exit code.
package executor

import (
	"os"
	"regexp"
	"strings"
)

// tokenRe splits a command line by whitespace except inside double
// quotes, preserving the quotes themselves.
var tokenRe = regexp.MustCompile(`(?:[^\s"]|"(?:\\.|[^"])*")+`)

// percentVarRe matches Windows %VAR% references, the form ntpath's
// expandvars() recognizes alongside $VAR/${VAR}.
var percentVarRe = regexp.MustCompile(`%([A-Za-z0-9_()]+)%`)

var requiredFlags = []string{"/noreboot", "/synchronize", "/sendStatus", "/nonotify", "/quiet"}

// NormalizeCommand expands environment variables in raw — both
// $VAR/${VAR} and the Windows %VAR% form — tokenizes it preserving
// quoted substrings, and — if the command invokes cscript or a .js
// script — ensures "cscript" heads the token list and that all of
// requiredFlags are present, appending any that are missing. The result
// is a single command string with tokens joined by a single space,
// matching the deployer's own invocation convention.
func NormalizeCommand(raw string) string {
	expanded := os.Expand(raw, func(name string) string {
		return os.Getenv(name)
	})
	expanded = percentVarRe.ReplaceAllStringFunc(expanded, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})

	tokens := tokenRe.FindAllString(expanded, -1)
	if len(tokens) == 0 {
		return expanded
	}

	head := strings.ToLower(stripQuotes(tokens[0]))
	isScript := head == "cscript" || strings.HasSuffix(head, ".js")

	if isScript {
		if strings.ToLower(tokens[0]) != "cscript" {
			tokens = append([]string{"cscript"}, tokens...)
		}
		for _, flag := range requiredFlags {
			if !containsToken(tokens, flag) {
				tokens = append(tokens, flag)
			}
		}
	}

	return strings.Join(tokens, " ")
}

func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}

// containsToken matches the original's exact, case-sensitive membership
// check ("/noreboot" in commandlist) so flags are only recognized in
// their canonical casing.
func containsToken(tokens []string, target string) bool {
	for _, t := range tokens {
		if t == target {
			return true
		}
	}
	return false
}

// QueryCommand appends the query-mode flags to an already-normalized
// Execute command. /dryrun keeps wpkg.xml's file modification time
// untouched.
func QueryCommand(normalized string) string {
	return normalized + " /query:Iudr /dryrun"
}

// scriptExtensions are the Windows Script Host extensions a deployer
// invocation may name; used to recognize the script token in a
// normalized command line.
var scriptExtensions = []string{".js", ".vbs", ".wsf"}

// ScriptBasename returns the file name of the script token in a
// normalized deployer command (e.g. "wpkg.js" out of
// "cscript \\srv\wpkg\wpkg.js /noreboot ..."), or "" if the command
// names no recognizable script file. Used to locate blacklist.txt
// alongside whatever script the configured WpkgCommand actually
// invokes, rather than assuming the literal name "wpkg.js".
func ScriptBasename(normalized string) string {
	for _, tok := range tokenRe.FindAllString(normalized, -1) {
		tok = stripQuotes(tok)
		lower := strings.ToLower(tok)
		for _, ext := range scriptExtensions {
			if strings.HasSuffix(lower, ext) {
				return tok[strings.LastIndexAny(tok, `\/`)+1:]
			}
		}
	}
	return ""
}
