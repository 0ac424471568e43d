package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

const (
	grepMaxResults   = 500
	grepMaxFileBytes = 1_000_000
)

// GrepTool searches file contents for a regular expression.
type GrepTool struct {
	workspaceRoot string
	maxResults    int
	maxFileBytes  int
}

func NewGrepTool(workspaceRoot string) *GrepTool {
	return &GrepTool{
		workspaceRoot: resolveRoot(workspaceRoot),
		maxResults:    grepMaxResults,
		maxFileBytes:  grepMaxFileBytes,
	}
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "파일 내용에서 정규식 패턴을 검색해요. 파일 경로, 줄 번호, 일치하는 줄을 반환해요."
}

func (t *GrepTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "검색할 정규식 패턴이에요.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "검색 시작 디렉터리예요. 생략 시 workspace 루트를 사용해요.",
			},
			"include": map[string]any{
				"type":        "string",
				"description": "검색 대상 파일 glob 패턴이에요. 예: *.py, *.{ts,tsx}",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) Result {
	rawPattern, ok := requiredString(args, "pattern")
	if !ok {
		return failure("pattern 파라미터가 필요해요.")
	}
	regex, err := regexp.Compile(rawPattern)
	if err != nil {
		return failure(fmt.Sprintf("정규식이 올바르지 않아요: %v", err))
	}

	searchRoot := t.workspaceRoot
	if raw := optionalString(args, "path"); raw != "" {
		candidate := resolveWorkspacePath(t.workspaceRoot, raw)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			searchRoot = candidate
		}
	}

	fileGlob := optionalString(args, "include")
	if fileGlob == "" {
		fileGlob = "**/*"
	}

	files, err := doublestar.Glob(filepath.Join(searchRoot, fileGlob))
	if err != nil {
		files = nil
	}
	sort.Strings(files)

	var results []string
	fileMatchCount := 0
	for _, path := range files {
		if len(results) >= t.maxResults {
			break
		}
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() || info.Size() > int64(t.maxFileBytes) {
			continue
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}

		fileHadMatch := false
		for lineNum, line := range splitPlainLines(decodeReplace(raw)) {
			if len(results) >= t.maxResults {
				break
			}
			if regex.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", path, lineNum+1, rstrip(line)))
				fileHadMatch = true
			}
		}
		if fileHadMatch {
			fileMatchCount++
		}
	}

	output := strings.Join(results, "\n")
	if len(results) == 0 {
		output = "(일치하는 내용이 없어요)"
	}
	return Result{
		Ok:     true,
		Output: output,
		Metadata: map[string]any{
			"match_count": len(results),
			"file_count":  fileMatchCount,
			"truncated":   len(results) >= t.maxResults,
		},
	}
}

// splitPlainLines splits text into lines without their line endings,
// dropping the empty tail a trailing newline would produce.
func splitPlainLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
