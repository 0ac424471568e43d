// Package providers defines the adapter contract between the turn engine
// and LLM providers, plus the concrete adapters the service ships with.
package providers

import (
	"context"

	"github.com/codial-dev/codial-core/pkg/models"
)

// ToolSpec describes one callable tool in provider-facing form. Built-in
// tools leave Title and OutputSchema empty; MCP tools may carry both.
type ToolSpec struct {
	Name         string
	Title        string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// ToolRequest is one tool invocation requested by the provider. CallID is
// the provider's correlation id and may be empty.
type ToolRequest struct {
	Name      string
	CallID    string
	Arguments map[string]any
}

// ToolResult carries the outcome of one ToolRequest back into the next
// provider round. Result is nil when Ok is false.
type ToolResult struct {
	Name   string
	CallID string
	Ok     bool
	Result map[string]any
	Error  string
}

// Request is everything an adapter needs to produce the next response for
// a turn. ToolResults holds the outcomes of the previous round's requests;
// ToolCallRound starts at zero and increments per round.
type Request struct {
	SessionID           string
	UserID              string
	Provider            string
	Model               string
	Text                string
	Attachments         []models.TurnAttachment
	McpEnabled          bool
	McpProfileName      *string
	RulesSummary        string
	AgentsSummary       string
	SkillsSummary       string
	SystemMemorySummary string
	ToolSpecs           []ToolSpec
	ToolResults         []ToolResult
	ToolCallRound       int
}

// Response is one provider round's output. An empty ToolRequests slice
// ends the turn's provider loop.
type Response struct {
	OutputText      string
	DecisionSummary string
	ToolRequests    []ToolRequest
}

// Adapter generates responses for one named provider.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, request Request) (Response, error)
}
