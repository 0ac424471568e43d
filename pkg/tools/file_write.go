package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileWriteTool creates or overwrites a file, creating parent directories
// as needed.
type FileWriteTool struct {
	workspaceRoot string
}

func NewFileWriteTool(workspaceRoot string) *FileWriteTool {
	return &FileWriteTool{workspaceRoot: resolveRoot(workspaceRoot)}
}

func (t *FileWriteTool) Name() string { return "file_write" }

func (t *FileWriteTool) Description() string {
	return "파일에 내용을 기록해요. 파일이 없으면 새로 만들고, 있으면 덮어써요. 필요한 상위 디렉터리도 자동으로 생성해요."
}

func (t *FileWriteTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "기록할 파일 경로예요.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "파일에 기록할 텍스트 내용이에요.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *FileWriteTool) Execute(ctx context.Context, args map[string]any) Result {
	rawPath, ok := requiredString(args, "path")
	if !ok {
		return failure("path 파라미터가 필요해요.")
	}
	content, isString := args["content"].(string)
	if !isString {
		return failure("content 파라미터가 필요해요.")
	}

	target := resolveWorkspacePath(t.workspaceRoot, rawPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failure(fmt.Sprintf("파일 쓰기에 실패했어요: %v", err))
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return failure(fmt.Sprintf("파일 쓰기에 실패했어요: %v", err))
	}

	lineCount := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lineCount++
	}

	return Result{
		Ok:     true,
		Output: fmt.Sprintf("파일을 기록했어요: %s", target),
		Metadata: map[string]any{
			"byte_count": len(content),
			"line_count": lineCount,
		},
	}
}
