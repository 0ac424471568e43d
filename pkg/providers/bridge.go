package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// BridgeAdapter forwards turn requests to an external HTTP bridge that
// exposes the /v1/generate contract and relays the provider's answer back.
type BridgeAdapter struct {
	name    string
	hint    string
	baseURL string
	token   string
	client  *http.Client
}

// NewBridgeAdapter builds an adapter for one named bridge. The hint is the
// human-readable provider name used in error and decision messages.
func NewBridgeAdapter(name, hint, baseURL, token string, timeout time.Duration) *BridgeAdapter {
	return &BridgeAdapter{
		name:    name,
		hint:    hint,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *BridgeAdapter) Name() string { return a.name }

// Wire shapes for POST /v1/generate. Optional fields serialize as JSON null
// rather than being omitted, matching what the bridge expects.
type bridgeToolSpec struct {
	Name         string         `json:"name"`
	Title        *string        `json:"title"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema"`
}

type bridgeToolResult struct {
	Name   string         `json:"name"`
	CallID *string        `json:"call_id"`
	Ok     bool           `json:"ok"`
	Result map[string]any `json:"result"`
	Error  *string        `json:"error"`
}

type bridgeAttachment struct {
	AttachmentID string  `json:"attachment_id"`
	Filename     string  `json:"filename"`
	ContentType  *string `json:"content_type"`
	Size         int64   `json:"size"`
	URL          string  `json:"url"`
}

type bridgePayload struct {
	SessionID           string             `json:"session_id"`
	UserID              string             `json:"user_id"`
	Provider            string             `json:"provider"`
	Model               string             `json:"model"`
	Text                string             `json:"text"`
	McpEnabled          bool               `json:"mcp_enabled"`
	McpProfileName      *string            `json:"mcp_profile_name"`
	SystemMemorySummary string             `json:"system_memory_summary"`
	ToolCallRound       int                `json:"tool_call_round"`
	McpTools            []bridgeToolSpec   `json:"mcp_tools"`
	ToolResults         []bridgeToolResult `json:"tool_results"`
	Attachments         []bridgeAttachment `json:"attachments"`
}

func (a *BridgeAdapter) Generate(ctx context.Context, request Request) (Response, error) {
	if a.baseURL == "" {
		return Response{}, domain.NewConfiguration(a.hint + " 브리지 주소가 설정되지 않았어요.")
	}

	body, err := json.Marshal(buildBridgePayload(request))
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal bridge payload: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build bridge request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+a.token)
	}

	httpResponse, err := a.client.Do(httpRequest)
	if err != nil {
		if domain.IsTimeout(err) {
			return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 요청이 시간 초과됐어요.").WithCause(err)
		}
		return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 연결에 실패했어요.").WithCause(err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode >= 500 {
		return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 서버 오류가 발생했어요.")
	}
	if httpResponse.StatusCode >= 400 {
		return Response{}, fmt.Errorf("bridge returned status %d", httpResponse.StatusCode)
	}

	raw, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		if domain.IsTimeout(err) {
			return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 요청이 시간 초과됐어요.").WithCause(err)
		}
		return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 연결에 실패했어요.").WithCause(err)
	}

	parsed := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) || !parsed.IsObject() {
		return Response{}, domain.NewUpstreamTransient(a.hint + " 브리지 응답 형식이 올바르지 않아요.")
	}

	outputText := ""
	if value := parsed.Get("output_text"); value.Type == gjson.String {
		outputText = value.String()
	}

	toolRequests := parseToolRequests(parsed)

	decisionSummary := a.hint + " 응답을 받았어요."
	if len(toolRequests) > 0 {
		decisionSummary = a.hint + " 도구 호출을 요청했어요."
	}
	if value := parsed.Get("decision_summary"); value.Type == gjson.String {
		decisionSummary = value.String()
	}

	return Response{
		OutputText:      outputText,
		DecisionSummary: decisionSummary,
		ToolRequests:    toolRequests,
	}, nil
}

func buildBridgePayload(request Request) bridgePayload {
	tools := make([]bridgeToolSpec, 0, len(request.ToolSpecs))
	for _, spec := range request.ToolSpecs {
		tools = append(tools, bridgeToolSpec{
			Name:         spec.Name,
			Title:        nullableString(spec.Title),
			Description:  spec.Description,
			InputSchema:  spec.InputSchema,
			OutputSchema: spec.OutputSchema,
		})
	}

	results := make([]bridgeToolResult, 0, len(request.ToolResults))
	for _, result := range request.ToolResults {
		results = append(results, bridgeToolResult{
			Name:   result.Name,
			CallID: nullableString(result.CallID),
			Ok:     result.Ok,
			Result: result.Result,
			Error:  nullableString(result.Error),
		})
	}

	attachments := make([]bridgeAttachment, 0, len(request.Attachments))
	for _, attachment := range request.Attachments {
		attachments = append(attachments, bridgeAttachment{
			AttachmentID: attachment.AttachmentID,
			Filename:     attachment.Filename,
			ContentType:  attachment.ContentType,
			Size:         attachment.Size,
			URL:          attachment.URL,
		})
	}

	return bridgePayload{
		SessionID:           request.SessionID,
		UserID:              request.UserID,
		Provider:            request.Provider,
		Model:               request.Model,
		Text:                request.Text,
		McpEnabled:          request.McpEnabled,
		McpProfileName:      request.McpProfileName,
		SystemMemorySummary: request.SystemMemorySummary,
		ToolCallRound:       request.ToolCallRound,
		McpTools:            tools,
		ToolResults:         results,
		Attachments:         attachments,
	}
}

// parseToolRequests extracts tool calls from a bridge response body. The
// bridge may use either the "tool_requests" or the legacy "tool_calls" key;
// entries without a usable name are dropped.
func parseToolRequests(body gjson.Result) []ToolRequest {
	rawCalls := body.Get("tool_requests")
	if !rawCalls.IsArray() {
		rawCalls = body.Get("tool_calls")
	}
	if !rawCalls.IsArray() {
		return nil
	}

	var requests []ToolRequest
	for _, item := range rawCalls.Array() {
		if !item.IsObject() {
			continue
		}

		name := item.Get("name")
		if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
			continue
		}

		arguments := map[string]any{}
		if rawArguments := item.Get("arguments"); rawArguments.IsObject() {
			if value, ok := rawArguments.Value().(map[string]any); ok {
				arguments = value
			}
		}

		callID := ""
		if value := item.Get("call_id"); value.Type == gjson.String {
			callID = value.String()
		} else if value := item.Get("id"); value.Type == gjson.String {
			callID = value.String()
		}

		requests = append(requests, ToolRequest{
			Name:      strings.TrimSpace(name.String()),
			CallID:    callID,
			Arguments: arguments,
		})
	}
	return requests
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

var _ Adapter = (*BridgeAdapter)(nil)
