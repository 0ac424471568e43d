// Package tools implements the built-in tool registry and the tools the
// turn engine exposes to providers: web fetch, shell, file read/write,
// hashline editing, glob, and grep.
//
// Tools never return Go errors. Every failure is reported in-band through
// Result so the provider sees a uniform shape regardless of what went
// wrong inside the tool.
package tools

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Result is the outcome of a single tool invocation.
type Result struct {
	Ok       bool
	Output   string
	Error    string
	Metadata map[string]any
}

// Tool is one callable capability exposed to providers.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) Result
}

func failure(message string) Result {
	return Result{Ok: false, Error: message}
}

// requiredString returns the trimmed string argument, reporting false when
// it is missing, not a string, or blank.
func requiredString(args map[string]any, key string) (string, bool) {
	value, _ := args[key].(string)
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// optionalString returns the trimmed string argument, or "" when absent.
func optionalString(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

// intArg reads a numeric argument. JSON decoding hands numbers over as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string, fallback int) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return fallback
}

// floatArg reads a positive numeric argument, reporting false when it is
// absent, non-numeric, or not positive.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch value := args[key].(type) {
	case float64:
		if value > 0 {
			return value, true
		}
	case int:
		if value > 0 {
			return float64(value), true
		}
	}
	return 0, false
}

// resolveWorkspacePath turns a tool path argument into an absolute path.
// Relative paths are anchored at the workspace root.
func resolveWorkspacePath(workspaceRoot, raw string) string {
	path := strings.TrimSpace(raw)
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspaceRoot, path)
	}
	return filepath.Clean(path)
}

// resolveRoot absolutizes the configured workspace root once at tool
// construction time.
func resolveRoot(workspaceRoot string) string {
	absolute, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return filepath.Clean(workspaceRoot)
	}
	return absolute
}

// splitKeepEnds splits text into lines, each retaining its trailing
// newline. A final unterminated line is kept as-is.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for len(text) > 0 {
		newline := strings.IndexByte(text, '\n')
		if newline < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:newline+1])
		text = text[newline+1:]
	}
	return lines
}

// stripLineEnding removes one line's trailing newline characters while
// preserving other trailing whitespace.
func stripLineEnding(line string) string {
	line = strings.TrimRight(line, "\n")
	return strings.TrimRight(line, "\r")
}

// rstrip removes all trailing whitespace from a line.
func rstrip(line string) string {
	return strings.TrimRightFunc(line, unicode.IsSpace)
}

// decodeReplace sanitizes raw bytes into valid UTF-8, substituting the
// replacement rune for broken sequences.
func decodeReplace(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

func secondsDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
