package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

func newTestClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		client:    &http.Client{Timeout: 3 * time.Second},
	}
}

// rpcRequest is one captured JSON-RPC exchange for later assertions.
type rpcRequest struct {
	method string
	body   gjson.Result
	header http.Header
}

// rpcServer routes incoming JSON-RPC calls to per-method responders and
// records every request it sees.
type rpcServer struct {
	mu       sync.Mutex
	requests []rpcRequest
	respond  func(method string, body gjson.Result, w http.ResponseWriter)
}

func (s *rpcServer) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := gjson.ParseBytes(raw)
	method := body.Get("method").String()

	s.mu.Lock()
	s.requests = append(s.requests, rpcRequest{method: method, body: body, header: r.Header.Clone()})
	s.mu.Unlock()

	s.respond(method, body, w)
}

func (s *rpcServer) calls(method string) []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []rpcRequest
	for _, request := range s.requests {
		if request.method == method {
			matched = append(matched, request)
		}
	}
	return matched
}

func initializeResponder(t *testing.T) func(method string, body gjson.Result, w http.ResponseWriter) {
	return func(method string, body gjson.Result, w http.ResponseWriter) {
		switch method {
		case "initialize":
			w.Header().Set("MCP-Session-Id", "sess-1")
			_, _ = w.Write([]byte(`{
				"jsonrpc": "2.0", "id": 1,
				"result": {
					"protocolVersion": "2025-11-25",
					"capabilities": {"tools": {}},
					"serverInfo": {"name": "test-server", "version": "1.2.3"},
					"instructions": "테스트 서버예요."
				}
			}`))
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		default:
			t.Errorf("unexpected method %q", method)
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func TestClientRequiresServerURL(t *testing.T) {
	client := NewClient("", "", 3*time.Second)

	_, err := client.Initialize(context.Background(), "codial", "0.1.0")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConfiguration))
	assert.Contains(t, err.Error(), "MCP 서버 주소가 설정되지 않았어요")
}

func TestInitializeHandshake(t *testing.T) {
	script := &rpcServer{respond: initializeResponder(t)}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	result, err := client.Initialize(context.Background(), "codial-core", "0.1.0")

	require.NoError(t, err)
	assert.Equal(t, "test-server", result.ServerName)
	assert.Equal(t, "1.2.3", result.ServerVersion)
	assert.Equal(t, "2025-11-25", result.ProtocolVersion)
	assert.Equal(t, map[string]any{"tools": map[string]any{}}, result.ServerCapabilities)
	assert.Equal(t, "테스트 서버예요.", result.Instructions)
	assert.Equal(t, "sess-1", result.SessionID)

	initCalls := script.calls("initialize")
	require.Len(t, initCalls, 1)
	init := initCalls[0]
	assert.Equal(t, "2.0", init.body.Get("jsonrpc").String())
	assert.Equal(t, int64(1), init.body.Get("id").Int())
	assert.Equal(t, "2025-11-25", init.body.Get("params.protocolVersion").String())
	assert.Equal(t, "codial-core", init.body.Get("params.clientInfo.name").String())
	assert.Equal(t, "application/json, text/event-stream", init.header.Get("Accept"))
	// The handshake request itself carries neither negotiated header.
	assert.Empty(t, init.header.Get("MCP-Protocol-Version"))
	assert.Empty(t, init.header.Get("MCP-Session-Id"))

	notifyCalls := script.calls("notifications/initialized")
	require.Len(t, notifyCalls, 1)
	notify := notifyCalls[0]
	assert.False(t, notify.body.Get("id").Exists())
	assert.Empty(t, notify.header.Get("Accept"))
	assert.Equal(t, "2025-11-25", notify.header.Get("MCP-Protocol-Version"))
	assert.Equal(t, "sess-1", notify.header.Get("MCP-Session-Id"))
}

func TestEnsureInitializedRunsHandshakeOnce(t *testing.T) {
	script := &rpcServer{respond: initializeResponder(t)}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	first, err := client.EnsureInitialized(context.Background(), "codial-core", "0.1.0")
	require.NoError(t, err)
	second, err := client.EnsureInitialized(context.Background(), "codial-core", "0.1.0")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, script.calls("initialize"), 1)
	assert.Len(t, script.calls("notifications/initialized"), 1)
}

func TestEnsureInitializedRetriesAfterFailure(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		if failing.Load() && method == "initialize" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		initializeResponder(t)(method, body, w)
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	_, err := client.EnsureInitialized(context.Background(), "codial-core", "0.1.0")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))

	failing.Store(false)
	result, err := client.EnsureInitialized(context.Background(), "codial-core", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "test-server", result.ServerName)
	assert.Len(t, script.calls("initialize"), 2)
}

func TestListToolsFollowsPagination(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		assert.Equal(t, "tools/list", method)
		if !body.Get("params.cursor").Exists() {
			_, _ = w.Write([]byte(`{
				"jsonrpc": "2.0", "id": 1,
				"result": {
					"tools": [{
						"name": "search_docs",
						"title": "문서 검색",
						"description": "문서를 검색해요.",
						"inputSchema": {"type": "object"}
					}],
					"nextCursor": "next-1"
				}
			}`))
			return
		}
		assert.Equal(t, "next-1", body.Get("params.cursor").String())
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 2,
			"result": {
				"tools": [{
					"name": "open_file",
					"description": "파일을 열어요.",
					"inputSchema": {"type": "object"}
				}]
			}
		}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	tools, err := client.ListTools(context.Background())

	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "search_docs", tools[0].Name)
	assert.Equal(t, "문서 검색", tools[0].Title)
	assert.Equal(t, map[string]any{"type": "object"}, tools[0].InputSchema)
	assert.Nil(t, tools[0].OutputSchema)
	assert.Equal(t, "open_file", tools[1].Name)
	assert.Empty(t, tools[1].Title)
}

func TestListPaginationDetectsCursorCycle(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[],"nextCursor":"loop"}}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	_, err := client.ListTools(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Contains(t, err.Error(), "cursor 순환이 감지됐어요")
}

func TestListPromptsAndResources(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		switch method {
		case "prompts/list":
			_, _ = w.Write([]byte(`{
				"jsonrpc": "2.0", "id": 1,
				"result": {"prompts": [{
					"name": "code_review",
					"description": "코드 리뷰 프롬프트예요.",
					"arguments": [{"name": "code", "required": true}]
				}]}
			}`))
		case "resources/list":
			_, _ = w.Write([]byte(`{
				"jsonrpc": "2.0", "id": 2,
				"result": {"resources": [{
					"uri": "file:///workspace/README.md",
					"name": "README.md",
					"mimeType": "text/markdown"
				}]}
			}`))
		case "resources/templates/list":
			_, _ = w.Write([]byte(`{
				"jsonrpc": "2.0", "id": 3,
				"result": {"resourceTemplates": [{
					"uriTemplate": "file:///{path}",
					"name": "project-files"
				}]}
			}`))
		default:
			t.Errorf("unexpected method %q", method)
		}
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	prompts, err := client.ListPrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "code_review", prompts[0].Name)
	require.Len(t, prompts[0].Arguments, 1)
	assert.Equal(t, "code", prompts[0].Arguments[0].Name)
	assert.True(t, prompts[0].Arguments[0].Required)

	resources, err := client.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "file:///workspace/README.md", resources[0].URI)
	assert.Equal(t, "text/markdown", resources[0].MimeType)

	templates, err := client.ListResourceTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "file:///{path}", templates[0].URITemplate)
}

func TestCallTool(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		assert.Equal(t, "tools/call", method)
		assert.Equal(t, "read_file", body.Get("params.name").String())
		assert.Equal(t, "README.md", body.Get("params.arguments.path").String())
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 1,
			"result": {"content": [{"type": "text", "text": "hello"}], "isError": false}
		}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	payload, err := client.CallTool(context.Background(), "read_file", map[string]any{"path": "README.md"})

	require.NoError(t, err)
	assert.Equal(t, false, payload["isError"])
	content, ok := payload["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
}

func TestCallSurfacesJSONRPCError(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"도구 실행에 실패했어요."}}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	_, err := client.CallTool(context.Background(), "read_file", map[string]any{})

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "도구 실행에 실패했어요.", err.Error())
}

func TestCallServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "MCP 서버 오류가 발생했어요.", err.Error())
}

func TestCallMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["not","an","object"]`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "MCP 응답 형식이 올바르지 않아요.", err.Error())
}

func TestCallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()
	client := &Client{serverURL: server.URL, client: &http.Client{Timeout: 50 * time.Millisecond}}

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "MCP 요청이 시간 초과됐어요.", err.Error())
}

func TestPingRequiresObjectResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP ping 응답 형식이 올바르지 않아요")
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":{}}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Ping(context.Background()))

	pings := script.calls("ping")
	require.Len(t, pings, 3)
	assert.Equal(t, int64(1), pings[0].body.Get("id").Int())
	assert.Equal(t, int64(2), pings[1].body.Get("id").Int())
	assert.Equal(t, int64(3), pings[2].body.Get("id").Int())
}

func TestSessionIDCapturedAndReplayed(t *testing.T) {
	script := &rpcServer{}
	script.respond = func(method string, body gjson.Result, w http.ResponseWriter) {
		w.Header().Set("MCP-Session-Id", "captured-session")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":{}}`))
	}
	server := httptest.NewServer(http.HandlerFunc(script.handle))
	defer server.Close()
	client := newTestClient(server.URL)

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Ping(context.Background()))

	pings := script.calls("ping")
	require.Len(t, pings, 2)
	assert.Empty(t, pings[0].header.Get("MCP-Session-Id"))
	assert.Equal(t, "captured-session", pings[1].header.Get("MCP-Session-Id"))
}
