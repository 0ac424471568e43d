package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

const globMaxResults = 1000

// GlobTool finds files matching a glob pattern, ** included.
type GlobTool struct {
	workspaceRoot string
	maxResults    int
}

func NewGlobTool(workspaceRoot string) *GlobTool {
	return &GlobTool{workspaceRoot: resolveRoot(workspaceRoot), maxResults: globMaxResults}
}

func (t *GlobTool) Name() string { return "glob" }

func (t *GlobTool) Description() string {
	return "Glob 패턴으로 파일을 검색해요. 예시: '**/*.py', 'src/**/*.ts', '*.json' 등이에요."
}

func (t *GlobTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob 패턴이에요. 예: **/*.py, src/**/*.ts",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "검색 시작 디렉터리예요. 생략 시 workspace 루트를 사용해요.",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) Result {
	pattern, ok := requiredString(args, "pattern")
	if !ok {
		return failure("pattern 파라미터가 필요해요.")
	}

	searchRoot := t.searchRoot(args)
	matches, err := doublestar.Glob(filepath.Join(searchRoot, pattern))
	if err != nil {
		return failure(fmt.Sprintf("Glob 검색에 실패했어요: %v", err))
	}
	sort.Strings(matches)

	total := len(matches)
	truncated := total > t.maxResults
	if truncated {
		matches = matches[:t.maxResults]
	}

	output := strings.Join(matches, "\n")
	if len(matches) == 0 {
		output = "(일치하는 파일이 없어요)"
	}
	return Result{
		Ok:     true,
		Output: output,
		Metadata: map[string]any{
			"match_count": total,
			"truncated":   truncated,
		},
	}
}

// searchRoot resolves the optional path argument, falling back to the
// workspace root unless it names an existing directory.
func (t *GlobTool) searchRoot(args map[string]any) string {
	raw := optionalString(args, "path")
	if raw == "" {
		return t.workspaceRoot
	}
	candidate := resolveWorkspacePath(t.workspaceRoot, raw)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return t.workspaceRoot
}
