package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// Client is the JSON-RPC client for one MCP server.
//
// Three separate locks keep the handshake from deadlocking against regular
// calls: initMu serializes the handshake, requestIDMu guards the id counter,
// sessionMu guards the negotiated protocol version and session id that feed
// the conditional request headers. No code path holds two of them at once
// except the handshake itself, which briefly takes the inner two in a fixed
// order.
type Client struct {
	serverURL string
	token     string
	client    *http.Client

	initMu     sync.Mutex
	initResult atomic.Pointer[InitializeResult]

	requestIDMu sync.Mutex
	requestID   int64

	sessionMu       sync.Mutex
	protocolVersion string
	sessionID       string
}

// NewClient builds a client for the given server URL. An empty URL yields a
// client whose every call fails with a configuration error.
func NewClient(serverURL, token string, timeout time.Duration) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: timeout},
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// EnsureInitialized performs the handshake at most once per client.
// Concurrent callers share a single handshake; a failed handshake leaves
// the client uninitialized so a later turn can retry.
func (c *Client) EnsureInitialized(ctx context.Context, clientName, clientVersion string) (InitializeResult, error) {
	if cached := c.initResult.Load(); cached != nil {
		return *cached, nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if cached := c.initResult.Load(); cached != nil {
		return *cached, nil
	}

	result, err := c.Initialize(ctx, clientName, clientVersion)
	if err != nil {
		return InitializeResult{}, err
	}
	c.initResult.Store(&result)
	return result, nil
}

// Initialize runs the raw initialize exchange: propose a protocol version,
// adopt the server's answer, then send the initialized notification. Most
// callers want EnsureInitialized instead.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (InitializeResult, error) {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}

	// The initialize request itself carries neither the protocol nor the
	// session header.
	body, err := c.call(ctx, "initialize", params, false, false)
	if err != nil {
		return InitializeResult{}, err
	}
	result := body.Get("result")
	if !result.IsObject() {
		return InitializeResult{}, domain.NewUpstreamTransient("MCP initialize 응답 형식이 올바르지 않아요.")
	}

	agreedVersion := ProtocolVersion
	if value := result.Get("protocolVersion"); value.Type == gjson.String {
		agreedVersion = value.String()
	}
	c.sessionMu.Lock()
	c.protocolVersion = agreedVersion
	c.sessionMu.Unlock()

	if err := c.notify(ctx, "notifications/initialized"); err != nil {
		return InitializeResult{}, err
	}

	serverName := ""
	serverVersion := ""
	if serverInfo := result.Get("serverInfo"); serverInfo.IsObject() {
		serverName = stringField(serverInfo, "name")
		serverVersion = stringField(serverInfo, "version")
	}

	c.sessionMu.Lock()
	sessionID := c.sessionID
	c.sessionMu.Unlock()

	return InitializeResult{
		ServerName:         serverName,
		ServerVersion:      serverVersion,
		ProtocolVersion:    agreedVersion,
		ServerCapabilities: objectField(result, "capabilities"),
		Instructions:       stringField(result, "instructions"),
		SessionID:          sessionID,
	}, nil
}

// ListTools walks tools/list to exhaustion and returns every usable entry.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	items, err := c.listPaginated(ctx, "tools/list", "tools")
	if err != nil {
		return nil, err
	}
	tools := make([]Tool, 0, len(items))
	for _, item := range items {
		name := item.Get("name")
		if name.Type != gjson.String {
			continue
		}
		tools = append(tools, Tool{
			Name:         name.String(),
			Title:        stringField(item, "title"),
			Description:  stringField(item, "description"),
			InputSchema:  objectField(item, "inputSchema"),
			OutputSchema: objectFieldOrNil(item, "outputSchema"),
		})
	}
	return tools, nil
}

// ListPrompts walks prompts/list to exhaustion.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	items, err := c.listPaginated(ctx, "prompts/list", "prompts")
	if err != nil {
		return nil, err
	}
	prompts := make([]Prompt, 0, len(items))
	for _, item := range items {
		name := item.Get("name")
		if name.Type != gjson.String {
			continue
		}

		var arguments []PromptArgument
		if rawArguments := item.Get("arguments"); rawArguments.IsArray() {
			for _, argument := range rawArguments.Array() {
				if !argument.IsObject() {
					continue
				}
				argumentName := argument.Get("name")
				if argumentName.Type != gjson.String {
					continue
				}
				arguments = append(arguments, PromptArgument{
					Name:        argumentName.String(),
					Description: stringField(argument, "description"),
					Required:    argument.Get("required").Bool(),
				})
			}
		}

		prompts = append(prompts, Prompt{
			Name:        name.String(),
			Title:       stringField(item, "title"),
			Description: stringField(item, "description"),
			Arguments:   arguments,
		})
	}
	return prompts, nil
}

// ListResources walks resources/list to exhaustion.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	items, err := c.listPaginated(ctx, "resources/list", "resources")
	if err != nil {
		return nil, err
	}
	resources := make([]Resource, 0, len(items))
	for _, item := range items {
		uri := item.Get("uri")
		name := item.Get("name")
		if uri.Type != gjson.String || name.Type != gjson.String {
			continue
		}
		resources = append(resources, Resource{
			URI:         uri.String(),
			Name:        name.String(),
			Title:       stringField(item, "title"),
			Description: stringField(item, "description"),
			MimeType:    stringField(item, "mimeType"),
		})
	}
	return resources, nil
}

// ListResourceTemplates walks resources/templates/list to exhaustion.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error) {
	items, err := c.listPaginated(ctx, "resources/templates/list", "resourceTemplates")
	if err != nil {
		return nil, err
	}
	templates := make([]ResourceTemplate, 0, len(items))
	for _, item := range items {
		uriTemplate := item.Get("uriTemplate")
		name := item.Get("name")
		if uriTemplate.Type != gjson.String || name.Type != gjson.String {
			continue
		}
		templates = append(templates, ResourceTemplate{
			URITemplate: uriTemplate.String(),
			Name:        name.String(),
			Title:       stringField(item, "title"),
			Description: stringField(item, "description"),
			MimeType:    stringField(item, "mimeType"),
		})
	}
	return templates, nil
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.call(ctx, "ping", map[string]any{}, true, true)
	if err != nil {
		return err
	}
	if !body.Get("result").IsObject() {
		return domain.NewUpstreamTransient("MCP ping 응답 형식이 올바르지 않아요.")
	}
	return nil
}

// CallTool invokes one server tool and returns the raw result payload.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	body, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": arguments}, true, true)
	if err != nil {
		return nil, err
	}
	result := body.Get("result")
	if !result.IsObject() {
		return nil, domain.NewUpstreamTransient("MCP tools/call 응답 형식이 올바르지 않아요.")
	}
	payload, ok := result.Value().(map[string]any)
	if !ok {
		return nil, domain.NewUpstreamTransient("MCP tools/call 응답 형식이 올바르지 않아요.")
	}
	return payload, nil
}

// listPaginated follows nextCursor until the server stops returning one. A
// repeated cursor means the walk would never terminate, so it fails fast.
func (c *Client) listPaginated(ctx context.Context, method, listKey string) ([]gjson.Result, error) {
	var items []gjson.Result
	cursor := ""
	seenCursors := make(map[string]struct{})

	for {
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}
		body, err := c.call(ctx, method, params, true, true)
		if err != nil {
			return nil, err
		}
		result := body.Get("result")
		if !result.IsObject() {
			return nil, domain.NewUpstreamTransient(fmt.Sprintf("MCP %s 응답 형식이 올바르지 않아요.", method))
		}

		if page := result.Get(listKey); page.IsArray() {
			for _, item := range page.Array() {
				if item.IsObject() {
					items = append(items, item)
				}
			}
		}

		next := result.Get("nextCursor")
		if next.Type != gjson.String || next.String() == "" {
			break
		}
		if _, repeated := seenCursors[next.String()]; repeated {
			return nil, domain.NewUpstreamTransient("MCP pagination cursor 순환이 감지됐어요.")
		}
		seenCursors[next.String()] = struct{}{}
		cursor = next.String()
	}
	return items, nil
}

func (c *Client) nextRequestID() int64 {
	c.requestIDMu.Lock()
	defer c.requestIDMu.Unlock()
	c.requestID++
	return c.requestID
}

// buildHeaders assembles the conditional header set for one request.
func (c *Client) buildHeaders(includeAccept, includeProtocol, includeSession bool) http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if includeAccept {
		headers.Set("Accept", "application/json, text/event-stream")
	}
	if c.token != "" {
		headers.Set("Authorization", "Bearer "+c.token)
	}

	c.sessionMu.Lock()
	protocolVersion, sessionID := c.protocolVersion, c.sessionID
	c.sessionMu.Unlock()

	if includeProtocol && protocolVersion != "" {
		headers.Set("MCP-Protocol-Version", protocolVersion)
	}
	if includeSession && sessionID != "" {
		headers.Set("MCP-Session-Id", sessionID)
	}
	return headers
}

// call performs one JSON-RPC request and returns the parsed envelope. The
// session id the server assigns is captured from the response headers.
func (c *Client) call(ctx context.Context, method string, params map[string]any, includeProtocolHeader, includeSessionHeader bool) (gjson.Result, error) {
	if c.serverURL == "" {
		return gjson.Result{}, domain.NewConfiguration("MCP 서버 주소가 설정되지 않았어요.")
	}

	encoded, err := json.Marshal(map[string]any{
		"jsonrpc": jsonrpcVersion,
		"id":      c.nextRequestID(),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal mcp request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(encoded))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to build mcp request: %w", err)
	}
	request.Header = c.buildHeaders(true, includeProtocolHeader, includeSessionHeader)

	response, err := c.client.Do(request)
	if err != nil {
		if domain.IsTimeout(err) {
			return gjson.Result{}, domain.NewUpstreamTransient("MCP 요청이 시간 초과됐어요.").WithCause(err)
		}
		return gjson.Result{}, domain.NewUpstreamTransient("MCP 요청 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 500 {
		return gjson.Result{}, domain.NewUpstreamTransient("MCP 서버 오류가 발생했어요.")
	}
	if response.StatusCode >= 400 {
		return gjson.Result{}, fmt.Errorf("mcp server returned status %d", response.StatusCode)
	}

	if sessionID := response.Header.Get("MCP-Session-Id"); sessionID != "" {
		c.sessionMu.Lock()
		c.sessionID = sessionID
		c.sessionMu.Unlock()
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		if domain.IsTimeout(err) {
			return gjson.Result{}, domain.NewUpstreamTransient("MCP 요청이 시간 초과됐어요.").WithCause(err)
		}
		return gjson.Result{}, domain.NewUpstreamTransient("MCP 요청 중 네트워크 오류가 발생했어요.").WithCause(err)
	}

	parsed := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) || !parsed.IsObject() {
		return gjson.Result{}, domain.NewUpstreamTransient("MCP 응답 형식이 올바르지 않아요.")
	}

	if errorValue := parsed.Get("error"); errorValue.IsObject() {
		message := "MCP 오류가 발생했어요."
		if text := errorValue.Get("message"); text.Type == gjson.String {
			message = text.String()
		}
		return gjson.Result{}, domain.NewUpstreamTransient(message)
	}

	return parsed, nil
}

// notify sends a JSON-RPC notification: no id, and no response body is
// expected. A JSON error envelope in the reply still surfaces as an error.
func (c *Client) notify(ctx context.Context, method string) error {
	if c.serverURL == "" {
		return domain.NewConfiguration("MCP 서버 주소가 설정되지 않았어요.")
	}

	encoded, err := json.Marshal(map[string]any{
		"jsonrpc": jsonrpcVersion,
		"method":  method,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mcp notification: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build mcp notification: %w", err)
	}
	request.Header = c.buildHeaders(false, true, true)

	response, err := c.client.Do(request)
	if err != nil {
		if domain.IsTimeout(err) {
			return domain.NewUpstreamTransient("MCP 알림 전송이 시간 초과됐어요.").WithCause(err)
		}
		return domain.NewUpstreamTransient("MCP 알림 전송 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 500 {
		return domain.NewUpstreamTransient("MCP 서버 오류가 발생했어요.")
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("mcp server returned status %d", response.StatusCode)
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return domain.NewUpstreamTransient("MCP 알림 전송 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	if len(raw) == 0 {
		return nil
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil
	}
	if errorValue := parsed.Get("error"); errorValue.IsObject() {
		message := "MCP 오류가 발생했어요."
		if text := errorValue.Get("message"); text.Type == gjson.String {
			message = text.String()
		}
		return domain.NewUpstreamTransient(message)
	}
	return nil
}

func stringField(item gjson.Result, key string) string {
	if value := item.Get(key); value.Type == gjson.String {
		return value.String()
	}
	return ""
}

func objectField(item gjson.Result, key string) map[string]any {
	if value := item.Get(key); value.IsObject() {
		if object, ok := value.Value().(map[string]any); ok {
			return object
		}
	}
	return map[string]any{}
}

func objectFieldOrNil(item gjson.Result, key string) map[string]any {
	if value := item.Get(key); value.IsObject() {
		if object, ok := value.Value().(map[string]any); ok {
			return object
		}
	}
	return nil
}
