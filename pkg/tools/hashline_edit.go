package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// HashlineEditTool replaces, deletes, or inserts line ranges addressed by
// the hash anchors that file_read prints. Anchoring on content hashes
// instead of raw strings removes whitespace-mismatch edit failures.
//
// The tool refuses to edit a file that was not read through file_read
// first, or that changed on disk after that read.
type HashlineEditTool struct {
	workspaceRoot string
	registry      *Registry
}

// NewHashlineEditTool builds the tool. The registry supplies the
// read-before-edit check; pass nil to disable it.
func NewHashlineEditTool(workspaceRoot string, registry *Registry) *HashlineEditTool {
	return &HashlineEditTool{
		workspaceRoot: resolveRoot(workspaceRoot),
		registry:      registry,
	}
}

func (t *HashlineEditTool) Name() string { return "hashline_edit" }

func (t *HashlineEditTool) Description() string {
	return "⚠️ 반드시 file_read로 파일을 먼저 읽은 후에만 호출할 수 있어요. " +
		"file_read 없이 호출하면 오류가 발생해요. " +
		"파일이 수정된 이후에도 다시 file_read로 읽어야 해요. " +
		"file_read의 Hashline 포맷(줄번호:해시| 내용)에서 확인한 " +
		"해시 앵커를 사용하여 파일의 특정 라인 범위를 새 코드로 교체해요. " +
		"start_hash부터 end_hash까지의 라인이 new_content로 대체돼요. " +
		"단일 라인 수정 시 start_hash와 end_hash에 같은 값을 넣어요. " +
		"라인을 삭제하려면 new_content를 빈 문자열로 설정해요. " +
		"새 라인을 삽입하려면 insert_after_hash를 사용해요."
}

func (t *HashlineEditTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "수정할 파일 경로예요.",
			},
			"start_hash": map[string]any{
				"type":        "string",
				"description": "교체 시작 라인의 해시예요. file_read 출력에서 '줄번호:해시| 내용' 형식의 해시 부분이에요.",
			},
			"end_hash": map[string]any{
				"type":        "string",
				"description": "교체 끝 라인의 해시예요. start_hash와 같으면 단일 라인을 교체해요.",
			},
			"new_content": map[string]any{
				"type":        "string",
				"description": "대체할 새 코드예요. 빈 문자열이면 해당 범위를 삭제해요.",
			},
			"insert_after_hash": map[string]any{
				"type":        "string",
				"description": "이 해시 뒤에 new_content를 삽입해요. start_hash/end_hash 대신 사용하는 삽입 전용 모드예요.",
			},
			"start_lineno": map[string]any{
				"type":        "integer",
				"description": "해시 충돌(같은 해시가 여러 줄) 시 모호성을 해소하기 위한 시작 줄 번호 힌트(1-indexed)예요.",
			},
			"end_lineno": map[string]any{
				"type":        "integer",
				"description": "해시 충돌 시 끝 줄 번호 힌트(1-indexed)예요.",
			},
		},
		"required": []string{"path", "new_content"},
	}
}

func (t *HashlineEditTool) Execute(ctx context.Context, args map[string]any) Result {
	rawPath, ok := requiredString(args, "path")
	if !ok {
		return failure("path 파라미터가 필요해요.")
	}

	target := resolveWorkspacePath(t.workspaceRoot, rawPath)
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return failure(fmt.Sprintf("파일을 찾을 수 없어요: %s", target))
	}

	if t.registry != nil {
		if denyReason := t.registry.CheckFileEditAllowed(target); denyReason != "" {
			return failure(denyReason)
		}
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		return failure(fmt.Sprintf("파일 읽기에 실패했어요: %v", err))
	}

	lines := splitKeepEnds(string(raw))
	bare := make([]string, 0, len(lines))
	for _, line := range lines {
		bare = append(bare, stripLineEnding(line))
	}
	hashMap := buildHashToLineMap(bare)

	newContent := ""
	if raw, present := args["new_content"]; present {
		value, isString := raw.(string)
		if !isString {
			return failure("new_content 파라미터가 필요해요.")
		}
		newContent = value
	}

	if raw, present := args["insert_after_hash"]; present && raw != nil {
		return t.handleInsert(target, lines, hashMap, newContent, args)
	}
	return t.handleReplace(target, lines, hashMap, newContent, args)
}

func (t *HashlineEditTool) handleInsert(
	target string,
	lines []string,
	hashMap map[string][]int,
	newContent string,
	args map[string]any,
) Result {
	insertAfter := optionalString(args, "insert_after_hash")
	idx, found := resolveHashToIndex(insertAfter, hashMap, lineHint(args, "start_lineno"))
	if !found {
		return failure(fmt.Sprintf("insert_after_hash '%s'에 해당하는 라인을 찾을 수 없어요.", insertAfter))
	}

	newLines := newContentLines(newContent)
	result := make([]string, 0, len(lines)+len(newLines))
	result = append(result, lines[:idx+1]...)
	result = append(result, newLines...)
	result = append(result, lines[idx+1:]...)

	return t.writeAndRespond(target, result, "삽입", idx+1, len(newLines))
}

func (t *HashlineEditTool) handleReplace(
	target string,
	lines []string,
	hashMap map[string][]int,
	newContent string,
	args map[string]any,
) Result {
	startHash, ok := requiredString(args, "start_hash")
	if !ok {
		return failure("start_hash 파라미터가 필요해요 (삽입 모드는 insert_after_hash를 사용해요).")
	}
	endHash, ok := requiredString(args, "end_hash")
	if !ok {
		return failure("end_hash 파라미터가 필요해요.")
	}

	startIdx, found := resolveHashToIndex(startHash, hashMap, lineHint(args, "start_lineno"))
	if !found {
		return failure(fmt.Sprintf("start_hash '%s'에 해당하는 라인을 찾을 수 없어요.", startHash))
	}
	endIdx, found := resolveHashToIndex(endHash, hashMap, lineHint(args, "end_lineno"))
	if !found {
		return failure(fmt.Sprintf("end_hash '%s'에 해당하는 라인을 찾을 수 없어요.", endHash))
	}
	if startIdx > endIdx {
		startIdx, endIdx = endIdx, startIdx
	}

	var newLines []string
	if newContent != "" {
		newLines = newContentLines(newContent)
	}

	replacedCount := endIdx - startIdx + 1
	result := make([]string, 0, len(lines)-replacedCount+len(newLines))
	result = append(result, lines[:startIdx]...)
	result = append(result, newLines...)
	result = append(result, lines[endIdx+1:]...)

	action := "교체"
	if len(newLines) == 0 {
		action = "삭제"
	}
	return t.writeAndRespond(target, result, action, startIdx, replacedCount)
}

// writeAndRespond stores the edited lines and answers with a hashline
// preview around the affected range.
func (t *HashlineEditTool) writeAndRespond(
	target string,
	resultLines []string,
	action string,
	affectedStart int,
	affectedCount int,
) Result {
	if err := os.WriteFile(target, []byte(strings.Join(resultLines, "")), 0o644); err != nil {
		return failure(fmt.Sprintf("파일 쓰기에 실패했어요: %v", err))
	}

	previewStart := affectedStart - 2
	if previewStart < 0 {
		previewStart = 0
	}
	previewEnd := affectedStart + affectedCount + 2
	if previewEnd > len(resultLines) {
		previewEnd = len(resultLines)
	}
	previewSlice := make([]string, 0, previewEnd-previewStart)
	for _, line := range resultLines[previewStart:previewEnd] {
		previewSlice = append(previewSlice, stripLineEnding(line))
	}
	preview := formatLinesWithHash(previewSlice, previewStart+1)

	return Result{
		Ok: true,
		Output: fmt.Sprintf(
			"%d개 라인을 %s했어요.\n--- 변경 후 미리보기 ---\n%s",
			affectedCount, action, strings.Join(preview, "\n"),
		),
		Metadata: map[string]any{
			"action":         action,
			"affected_start": affectedStart + 1,
			"affected_count": affectedCount,
			"total_lines":    len(resultLines),
		},
	}
}

// lineHint reads a 1-indexed disambiguation hint, returning -1 when the
// hint is absent or invalid.
func lineHint(args map[string]any, key string) int {
	hint := intArg(args, key, 0)
	if hint >= 1 {
		return hint - 1
	}
	return -1
}

// newContentLines splits replacement content into keepends lines with a
// guaranteed trailing newline on the last line.
func newContentLines(content string) []string {
	lines := splitKeepEnds(content)
	if len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
