package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

const (
	shellDefaultTimeoutSeconds = 60.0
	shellMaxOutputBytes        = 500_000
)

// ShellTool runs a shell command and returns its combined output.
type ShellTool struct {
	workspaceRoot  string
	timeoutSeconds float64
	maxOutputBytes int
}

// NewShellTool builds the tool rooted at the given workspace directory.
func NewShellTool(workspaceRoot string) *ShellTool {
	return &ShellTool{
		workspaceRoot:  workspaceRoot,
		timeoutSeconds: shellDefaultTimeoutSeconds,
		maxOutputBytes: shellMaxOutputBytes,
	}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Description() string {
	return "셸 명령을 실행하고 stdout/stderr를 반환해요. 빌드, 테스트, git 등 모든 CLI 작업에 사용할 수 있어요."
}

func (t *ShellTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "실행할 셸 명령이에요.",
			},
			"workdir": map[string]any{
				"type":        "string",
				"description": "작업 디렉터리 경로예요. 생략 시 workspace 루트를 사용해요.",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "타임아웃 초 단위예요. 생략 시 기본값을 사용해요.",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any) Result {
	command, ok := requiredString(args, "command")
	if !ok {
		return failure("command 파라미터가 필요해요.")
	}

	workdir := optionalString(args, "workdir")
	if workdir == "" {
		workdir = t.workspaceRoot
	}

	timeout := t.timeoutSeconds
	if value, valid := floatArg(args, "timeout"); valid {
		timeout = value
	}

	runCtx, cancel := context.WithTimeout(ctx, secondsDuration(timeout))
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return failure(fmt.Sprintf("명령 실행이 %g초를 초과해 중단됐어요.", timeout))
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return failure(fmt.Sprintf("명령 실행에 실패했어요: %v", err))
		}
		exitCode = exitErr.ExitCode()
	}

	stdoutText := truncateDecode(stdout.Bytes(), t.maxOutputBytes)
	stderrText := truncateDecode(stderr.Bytes(), t.maxOutputBytes)

	combined := stdoutText
	if stderrText != "" {
		if stdoutText != "" {
			combined = fmt.Sprintf("%s\n--- stderr ---\n%s", stdoutText, stderrText)
		} else {
			combined = stderrText
		}
	}

	result := Result{
		Ok:     exitCode == 0,
		Output: combined,
		Metadata: map[string]any{
			"exit_code":    exitCode,
			"stdout_bytes": stdout.Len(),
			"stderr_bytes": stderr.Len(),
		},
	}
	if exitCode != 0 {
		result.Error = fmt.Sprintf("프로세스가 종료 코드 %d로 종료됐어요.", exitCode)
	}
	return result
}

func truncateDecode(raw []byte, limit int) string {
	if len(raw) > limit {
		raw = raw[:limit]
	}
	return decodeReplace(raw)
}
