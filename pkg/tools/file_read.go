package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

const (
	readMaxLines = 2000
	readMaxBytes = 500_000
)

// FileReadTool reads files in hashline form and lists directories. Each
// successful file read records the file's mtime in the shared registry so
// that hashline_edit can enforce read-before-edit.
type FileReadTool struct {
	workspaceRoot string
	maxLines      int
	maxBytes      int
	registry      *Registry
}

// NewFileReadTool builds the tool. The registry may be nil, in which case
// reads are not recorded.
func NewFileReadTool(workspaceRoot string, registry *Registry) *FileReadTool {
	return &FileReadTool{
		workspaceRoot: resolveRoot(workspaceRoot),
		maxLines:      readMaxLines,
		maxBytes:      readMaxBytes,
		registry:      registry,
	}
}

func (t *FileReadTool) Name() string { return "file_read" }

func (t *FileReadTool) Description() string {
	return "파일의 텍스트 내용을 Hashline 포맷(줄번호:해시| 내용)으로 읽어요. " +
		"각 줄에 내용 기반 2글자 해시 태그가 붙어요. " +
		"이 해시를 hashline_edit 도구에서 앵커로 사용해요. " +
		"디렉터리 경로를 주면 목록을 반환해요. " +
		"offset과 limit으로 범위를 지정할 수 있어요."
}

func (t *FileReadTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "읽을 파일 또는 디렉터리 경로예요. 절대 경로 또는 workspace 기준 상대 경로예요.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "읽기 시작할 줄 번호 (1-indexed)예요. 기본값은 1이에요.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "읽을 최대 줄 수예요. 기본값은 2000이에요.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *FileReadTool) Execute(ctx context.Context, args map[string]any) Result {
	rawPath, ok := requiredString(args, "path")
	if !ok {
		return failure("path 파라미터가 필요해요.")
	}

	target := resolveWorkspacePath(t.workspaceRoot, rawPath)
	info, err := os.Stat(target)
	if err != nil {
		return failure(fmt.Sprintf("경로를 찾을 수 없어요: %s", target))
	}

	if info.IsDir() {
		return t.readDirectory(target)
	}
	return t.readFile(target, args)
}

func (t *FileReadTool) readDirectory(target string) Result {
	entries, err := os.ReadDir(target)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return failure(fmt.Sprintf("디렉터리 접근 권한이 없어요: %s", target))
		}
		return failure(fmt.Sprintf("도구 실행 중 오류가 발생했어요: %v", err))
	}

	// Directories first, each group by name.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		suffix := ""
		if entry.IsDir() {
			suffix = "/"
		}
		lines = append(lines, entry.Name()+suffix)
	}

	return Result{
		Ok:     true,
		Output: strings.Join(lines, "\n"),
		Metadata: map[string]any{
			"type":        "directory",
			"entry_count": len(lines),
		},
	}
}

func (t *FileReadTool) readFile(target string, args map[string]any) Result {
	offset := intArg(args, "offset", 1)
	if offset < 1 {
		offset = 1
	}
	limit := intArg(args, "limit", t.maxLines)
	if limit < 1 {
		limit = 1
	}
	if limit > t.maxLines {
		limit = t.maxLines
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return failure(fmt.Sprintf("파일 접근 권한이 없어요: %s", target))
		}
		return failure(fmt.Sprintf("파일 읽기에 실패했어요: %v", err))
	}

	truncated := len(raw) > t.maxBytes
	visible := raw
	if truncated {
		visible = raw[:t.maxBytes]
	}
	allLines := splitKeepEnds(decodeReplace(visible))
	totalLines := len(allLines)

	startIdx := offset - 1
	if startIdx > totalLines {
		startIdx = totalLines
	}
	endIdx := startIdx + limit
	if endIdx > totalLines {
		endIdx = totalLines
	}
	selected := allLines[startIdx:endIdx]

	stripped := make([]string, 0, len(selected))
	for _, line := range selected {
		stripped = append(stripped, rstrip(line))
	}
	numbered := formatLinesWithHash(stripped, offset)

	if t.registry != nil {
		t.registry.NotifyFileRead(target)
	}

	return Result{
		Ok:     true,
		Output: strings.Join(numbered, "\n"),
		Metadata: map[string]any{
			"type":           "file",
			"total_lines":    totalLines,
			"offset":         offset,
			"lines_returned": len(selected),
			"byte_count":     len(raw),
			"truncated":      truncated,
		},
	}
}
