// Package mcp implements a JSON-RPC 2.0 client for the Model Context
// Protocol over HTTP. One Client talks to one server; turn workers share
// the instance, so every mutable field is lock-protected.
package mcp

const (
	jsonrpcVersion = "2.0"

	// ProtocolVersion is the protocol revision this client proposes during
	// the initialize handshake.
	ProtocolVersion = "2025-11-25"
)

// Tool is one entry from tools/list. Title and Description are empty when
// the server omits them; OutputSchema is nil when absent.
type Tool struct {
	Name         string
	Title        string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// PromptArgument is one declared argument of a server prompt.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// Prompt is one entry from prompts/list.
type Prompt struct {
	Name        string
	Title       string
	Description string
	Arguments   []PromptArgument
}

// Resource is one entry from resources/list.
type Resource struct {
	URI         string
	Name        string
	Title       string
	Description string
	MimeType    string
}

// ResourceTemplate is one entry from resources/templates/list.
type ResourceTemplate struct {
	URITemplate string
	Name        string
	Title       string
	Description string
	MimeType    string
}

// InitializeResult is the agreed outcome of the initialize handshake.
type InitializeResult struct {
	ServerName         string
	ServerVersion      string
	ProtocolVersion    string
	ServerCapabilities map[string]any
	Instructions       string
	SessionID          string
}
