// Package turns implements the per-turn processing pipeline: the Engine
// that drives one task from policy load to the terminal event, and the
// Service that accepts submissions from the HTTP layer.
package turns

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codial-dev/codial-core/pkg/attachments"
	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/events"
	"github.com/codial-dev/codial-core/pkg/mcp"
	"github.com/codial-dev/codial-core/pkg/models"
	"github.com/codial-dev/codial-core/pkg/policy"
	"github.com/codial-dev/codial-core/pkg/providers"
	"github.com/codial-dev/codial-core/pkg/subagent"
	"github.com/codial-dev/codial-core/pkg/tools"
)

// Identity sent in the MCP initialize handshake.
const (
	mcpClientName    = "codial-core"
	mcpClientVersion = "0.1.0"
)

// AttachmentIngestor is the slice of the attachment layer the engine needs.
type AttachmentIngestor interface {
	Ingest(ctx context.Context, sessionID, turnID string, attachments []models.TurnAttachment) (attachments.IngestResult, error)
}

// McpToolClient is the slice of the MCP client the engine drives. A nil
// client means no MCP server is configured for this process.
type McpToolClient interface {
	EnsureInitialized(ctx context.Context, clientName, clientVersion string) (mcp.InitializeResult, error)
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error)
}

// Engine turns one queued task into an ordered event stream: plan, a series
// of actions, per-round decision summaries and response deltas, and exactly
// one terminal final. Errors are returned to the worker supervisor, which
// owns the terminal error event.
//
// The engine keeps no per-turn state; one instance is shared by all workers.
type Engine struct {
	sink          events.Sink
	ingestor      AttachmentIngestor
	mcpClient     McpToolClient
	adapters      map[string]providers.Adapter
	policyLoader  *policy.Loader
	registry      *tools.Registry
	workspaceRoot string

	// maxRounds caps provider/tool round trips per turn; zero is unbounded.
	maxRounds int
}

// NewEngine wires an engine. mcpClient may be nil (MCP disabled process-wide).
func NewEngine(
	sink events.Sink,
	ingestor AttachmentIngestor,
	mcpClient McpToolClient,
	adapters map[string]providers.Adapter,
	policyLoader *policy.Loader,
	registry *tools.Registry,
	workspaceRoot string,
	maxRounds int,
) *Engine {
	return &Engine{
		sink:          sink,
		ingestor:      ingestor,
		mcpClient:     mcpClient,
		adapters:      adapters,
		policyLoader:  policyLoader,
		registry:      registry,
		workspaceRoot: workspaceRoot,
		maxRounds:     maxRounds,
	}
}

// effectiveConfig is the per-turn view of the session configuration after
// the subagent overlay. The task's own fields stay untouched.
type effectiveConfig struct {
	text           string
	model          string
	mcpEnabled     bool
	mcpProfileName *string
	memorySummary  string
}

// Process runs one turn to completion. On success the final event has been
// published; on error the caller emits the terminal error event.
func (e *Engine) Process(ctx context.Context, task models.TurnTask) error {
	snapshot, err := e.policyLoader.Load()
	if err != nil {
		return err
	}
	constraints := policy.ParseConstraints(snapshot.RulesText)

	effective, err := e.applyPlanAndSubagent(ctx, task, snapshot)
	if err != nil {
		return err
	}

	ingest, err := e.ingestor.Ingest(ctx, task.SessionID, task.TurnID, task.Attachments)
	if err != nil {
		return err
	}
	if err := e.emit(ctx, task, events.TypeAction, ingest.Summary); err != nil {
		return err
	}

	builtinNames, toolSpecs := e.collectBuiltinTools()
	toolSpecs, err = e.collectMcpTools(ctx, task, effective.mcpEnabled, toolSpecs, builtinNames)
	if err != nil {
		return err
	}

	if err := policy.Enforce(task.Provider, effective.model, constraints, snapshot.AvailableSkills); err != nil {
		return err
	}

	adapter := e.adapters[task.Provider]
	if adapter == nil {
		return domain.NewValidation(fmt.Sprintf(
			"지원하지 않는 프로바이더예요: `%s`. 지원 목록: %s",
			task.Provider, strings.Join(sortedAdapterNames(e.adapters), ", ")))
	}

	return e.runProviderLoop(ctx, task, adapter, effective, snapshot, toolSpecs, builtinNames)
}

// applyPlanAndSubagent opens the turn's event stream and resolves the
// effective configuration, overlaying the session's subagent when one is
// assigned. A missing subagent downgrades to the session settings.
func (e *Engine) applyPlanAndSubagent(ctx context.Context, task models.TurnTask, snapshot policy.Snapshot) (effectiveConfig, error) {
	effective := effectiveConfig{
		text:           task.Text,
		model:          task.Model,
		mcpEnabled:     task.McpEnabled,
		mcpProfileName: task.McpProfileName,
		memorySummary:  snapshot.SystemMemorySummary,
	}

	subagentLabel := "없음"
	if task.SubagentName != nil && *task.SubagentName != "" {
		subagentLabel = *task.SubagentName
	}
	planText := fmt.Sprintf(
		"요청을 분석하고 실행 계획을 준비하고 있어요. 프로바이더=`%s`, 모델=`%s`, 서브에이전트=`%s`, 첨부파일=%d개",
		task.Provider, task.Model, subagentLabel, len(task.Attachments))
	if err := e.emit(ctx, task, events.TypePlan, planText); err != nil {
		return effective, err
	}

	policyText := fmt.Sprintf(
		"정책 파일을 로드했어요. CLAUDE.md=`%s`, RULES=`%s`, AGENTS=`%s`, SKILLS=`%s`",
		snapshot.SystemMemorySummary, snapshot.RulesSummary, snapshot.AgentsSummary, snapshot.SkillsSummary)
	if err := e.emit(ctx, task, events.TypeAction, policyText); err != nil {
		return effective, err
	}

	if task.SubagentName == nil || *task.SubagentName == "" {
		return effective, nil
	}

	spec, found, err := e.loadSubagentSpec(*task.SubagentName)
	if err != nil {
		return effective, err
	}
	if !found {
		notFoundText := fmt.Sprintf(
			"서브에이전트 `%s`를 찾지 못했어요. 기본 세션 설정으로 계속 진행해요.", *task.SubagentName)
		if err := e.emit(ctx, task, events.TypeAction, notFoundText); err != nil {
			return effective, err
		}
		return effective, nil
	}

	effective = applySubagent(spec, effective)
	mcpState := "비활성"
	if effective.mcpEnabled {
		mcpState = "활성"
	}
	appliedText := fmt.Sprintf(
		"서브에이전트 `%s`를 적용했어요. 적용 모델=`%s`, MCP=`%s`",
		spec.Name, effective.model, mcpState)
	if err := e.emit(ctx, task, events.TypeAction, appliedText); err != nil {
		return effective, err
	}
	return effective, nil
}

// applySubagent overlays a subagent spec onto the effective configuration:
// concrete model wins over "inherit", the prompt becomes a prefix of the
// user text, mcpServers force MCP on and seed the profile, and memory is
// appended to the memory summary.
func applySubagent(spec subagent.Spec, effective effectiveConfig) effectiveConfig {
	if spec.Model != "inherit" {
		effective.model = spec.Model
	}
	if spec.Prompt != "" {
		if effective.text != "" {
			effective.text = spec.Prompt + "\n\n사용자 요청:\n" + effective.text
		} else {
			effective.text = spec.Prompt
		}
	}
	if len(spec.McpServers) > 0 {
		effective.mcpEnabled = true
		if effective.mcpProfileName == nil || *effective.mcpProfileName == "" {
			profile := spec.McpServers[0]
			effective.mcpProfileName = &profile
		}
	}
	if spec.Memory != "" {
		effective.memorySummary = fmt.Sprintf("%s, subagent-memory=%s", effective.memorySummary, spec.Memory)
	}
	return effective
}

func (e *Engine) collectBuiltinTools() (map[string]bool, []providers.ToolSpec) {
	specs := e.registry.ToProviderSpecs()
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		names[spec.Name] = true
	}
	return names, specs
}

// collectMcpTools extends the builtin catalog with the MCP server's tools.
// Transient MCP failures (handshake or listing) downgrade the turn to
// builtin-only instead of aborting it; name collisions keep the builtin.
func (e *Engine) collectMcpTools(
	ctx context.Context,
	task models.TurnTask,
	mcpEnabled bool,
	toolSpecs []providers.ToolSpec,
	builtinNames map[string]bool,
) ([]providers.ToolSpec, error) {
	names := make([]string, 0, len(builtinNames))
	for name := range builtinNames {
		names = append(names, name)
	}
	sort.Strings(names)
	registeredText := fmt.Sprintf("내장 도구 %d개를 등록했어요: %s", len(names), strings.Join(names, ", "))
	if err := e.emit(ctx, task, events.TypeAction, registeredText); err != nil {
		return toolSpecs, err
	}

	if !mcpEnabled || e.mcpClient == nil {
		return toolSpecs, nil
	}

	initResult, err := e.mcpClient.EnsureInitialized(ctx, mcpClientName, mcpClientVersion)
	if err != nil {
		if !domain.IsCode(err, domain.CodeUpstreamTransient) {
			return toolSpecs, err
		}
		slog.Warn("mcp_initialize_failed", "session_id", task.SessionID, "error", err)
		downgradeText := "MCP 서버에 연결하지 못했어요. 이번 턴은 내장 도구만 사용해요."
		if err := e.emit(ctx, task, events.TypeAction, downgradeText); err != nil {
			return toolSpecs, err
		}
		return toolSpecs, nil
	}

	serverName := initResult.ServerName
	if serverName == "" {
		serverName = "알 수 없는 서버"
	}
	protocolVersion := initResult.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = "미확인"
	}

	mcpTools, err := e.mcpClient.ListTools(ctx)
	if err != nil {
		if !domain.IsCode(err, domain.CodeUpstreamTransient) {
			return toolSpecs, err
		}
		slog.Warn("mcp_tools_list_failed", "session_id", task.SessionID, "error", err)
		listFailedText := fmt.Sprintf(
			"MCP 서버 `%s` 연결은 완료했지만 도구 목록을 가져오지 못했어요. 이번 턴은 내장 도구만 사용해요.", serverName)
		if err := e.emit(ctx, task, events.TypeAction, listFailedText); err != nil {
			return toolSpecs, err
		}
		return toolSpecs, nil
	}

	connectedText := fmt.Sprintf(
		"MCP 서버 `%s`를 연결했고 프로토콜 `%s`로 합의했어요. 도구=%d개를 확인했어요.",
		serverName, protocolVersion, len(mcpTools))
	if err := e.emit(ctx, task, events.TypeAction, connectedText); err != nil {
		return toolSpecs, err
	}

	for _, tool := range mcpTools {
		if builtinNames[tool.Name] {
			continue
		}
		toolSpecs = append(toolSpecs, providers.ToolSpec{
			Name:         tool.Name,
			Title:        tool.Title,
			Description:  tool.Description,
			InputSchema:  tool.InputSchema,
			OutputSchema: tool.OutputSchema,
		})
	}
	return toolSpecs, nil
}

// runProviderLoop drives generate/dispatch rounds until the provider stops
// requesting tools. Tool results from round n feed the request of round n+1.
func (e *Engine) runProviderLoop(
	ctx context.Context,
	task models.TurnTask,
	adapter providers.Adapter,
	effective effectiveConfig,
	snapshot policy.Snapshot,
	toolSpecs []providers.ToolSpec,
	builtinNames map[string]bool,
) error {
	var toolResults []providers.ToolResult

	for round := 0; ; round++ {
		if e.maxRounds > 0 && round >= e.maxRounds {
			return domain.NewValidation(fmt.Sprintf("도구 호출 라운드가 한도(%d회)를 초과했어요.", e.maxRounds))
		}

		request := providers.Request{
			SessionID:           task.SessionID,
			UserID:              task.UserID,
			Provider:            task.Provider,
			Model:               effective.model,
			Text:                effective.text,
			Attachments:         task.Attachments,
			McpEnabled:          effective.mcpEnabled,
			McpProfileName:      effective.mcpProfileName,
			RulesSummary:        snapshot.RulesSummary,
			AgentsSummary:       snapshot.AgentsSummary,
			SkillsSummary:       snapshot.SkillsSummary,
			SystemMemorySummary: effective.memorySummary,
			ToolSpecs:           toolSpecs,
			ToolResults:         toolResults,
			ToolCallRound:       round,
		}
		response, err := adapter.Generate(ctx, request)
		if err != nil {
			return err
		}

		if err := e.emit(ctx, task, events.TypeDecisionSummary, response.DecisionSummary); err != nil {
			return err
		}
		if response.OutputText != "" {
			if err := e.emit(ctx, task, events.TypeResponseDelta, response.OutputText); err != nil {
				return err
			}
		}

		if len(response.ToolRequests) == 0 {
			return e.emit(ctx, task, events.TypeFinal, "작업을 완료했어요.")
		}

		toolResults, err = e.dispatchToolCalls(ctx, task, response.ToolRequests, builtinNames, effective.mcpEnabled)
		if err != nil {
			return err
		}
	}
}

// dispatchToolCalls executes one round's tool requests in order and returns
// one result per request. Tool failures become ok=false results; only event
// publishing or cancellation aborts the round.
func (e *Engine) dispatchToolCalls(
	ctx context.Context,
	task models.TurnTask,
	requests []providers.ToolRequest,
	builtinNames map[string]bool,
	mcpEnabled bool,
) ([]providers.ToolResult, error) {
	results := make([]providers.ToolResult, 0, len(requests))
	for _, request := range requests {
		var result providers.ToolResult
		var err error
		switch {
		case builtinNames[request.Name]:
			result, err = e.callBuiltinTool(ctx, task, request)
		case mcpEnabled && e.mcpClient != nil:
			result, err = e.callMcpTool(ctx, task, request)
		default:
			result = providers.ToolResult{
				Name:   request.Name,
				CallID: request.CallID,
				Ok:     false,
				Error:  fmt.Sprintf("도구 `%s`을 실행할 수 없어요. 내장 도구가 아니고 MCP도 비활성 상태예요.", request.Name),
			}
			err = e.emit(ctx, task, events.TypeAction,
				fmt.Sprintf("도구 `%s`을 실행할 수 없어요 (미등록 도구, MCP 비활성).", request.Name))
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) callBuiltinTool(ctx context.Context, task models.TurnTask, request providers.ToolRequest) (providers.ToolResult, error) {
	callResult := e.registry.Call(ctx, request.Name, request.Arguments)

	statusText := "실패"
	if callResult.Ok {
		statusText = "성공"
	}
	actionText := fmt.Sprintf("내장 도구 `%s` 호출을 %s했어요.", request.Name, statusText)
	if err := e.emit(ctx, task, events.TypeAction, actionText); err != nil {
		return providers.ToolResult{}, err
	}

	if !callResult.Ok {
		return providers.ToolResult{
			Name:   request.Name,
			CallID: request.CallID,
			Ok:     false,
			Error:  callResult.Error,
		}, nil
	}

	payload := map[string]any{"output": callResult.Output}
	for key, value := range callResult.Metadata {
		payload[key] = value
	}
	return providers.ToolResult{
		Name:   request.Name,
		CallID: request.CallID,
		Ok:     true,
		Result: payload,
	}, nil
}

func (e *Engine) callMcpTool(ctx context.Context, task models.TurnTask, request providers.ToolRequest) (providers.ToolResult, error) {
	payload, err := e.mcpClient.CallTool(ctx, request.Name, request.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return providers.ToolResult{}, err
		}
		failureText := errorText(err)
		actionText := fmt.Sprintf("MCP 도구 `%s` 호출이 실패했어요: %s", request.Name, failureText)
		if emitErr := e.emit(ctx, task, events.TypeAction, actionText); emitErr != nil {
			return providers.ToolResult{}, emitErr
		}
		return providers.ToolResult{
			Name:   request.Name,
			CallID: request.CallID,
			Ok:     false,
			Error:  failureText,
		}, nil
	}

	actionText := fmt.Sprintf("MCP 도구 `%s` 호출을 성공적으로 완료했어요.", request.Name)
	if err := e.emit(ctx, task, events.TypeAction, actionText); err != nil {
		return providers.ToolResult{}, err
	}
	return providers.ToolResult{
		Name:   request.Name,
		CallID: request.CallID,
		Ok:     true,
		Result: payload,
	}, nil
}

func (e *Engine) loadSubagentSpec(name string) (subagent.Spec, bool, error) {
	specs, err := subagent.Discover(subagent.DefaultSearchPaths(e.workspaceRoot))
	if err != nil {
		return subagent.Spec{}, false, err
	}
	for _, spec := range specs {
		if spec.Name == name {
			return spec, true, nil
		}
	}
	return subagent.Spec{}, false, nil
}

func (e *Engine) emit(ctx context.Context, task models.TurnTask, eventType, text string) error {
	return e.sink.Publish(ctx, events.StreamEvent{
		SessionID: task.SessionID,
		TurnID:    task.TurnID,
		TraceID:   task.TraceID,
		Type:      eventType,
		Payload:   events.Payload{Text: text},
	})
}

func sortedAdapterNames(adapters map[string]providers.Adapter) []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func errorText(err error) string {
	if text := err.Error(); text != "" {
		return text
	}
	return "알 수 없는 오류"
}
