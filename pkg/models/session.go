// Package models holds the shared data shapes exchanged between the store,
// the services, the worker pool, and the HTTP layer.
package models

// SessionRecord.Status values.
const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// SessionRecord is the authoritative in-memory state of one session.
// Records are handed out by value; mutations happen only inside the store.
type SessionRecord struct {
	SessionID      string  `json:"session_id"`
	GuildID        string  `json:"guild_id"`
	RequesterID    string  `json:"requester_id"`
	ChannelID      *string `json:"channel_id"`
	Status         string  `json:"status"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	McpEnabled     bool    `json:"mcp_enabled"`
	McpProfileName *string `json:"mcp_profile_name"`
	SubagentName   *string `json:"subagent_name"`
}

// SessionDefaults carries the defaults snapshot applied when a session is
// created, derived from workspace agent defaults by the service layer.
type SessionDefaults struct {
	Provider       string
	Model          string
	McpEnabled     bool
	McpProfileName *string
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	GuildID        string `json:"guild_id"`
	RequesterID    string `json:"requester_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CreateSessionResponse is the body returned by POST /v1/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// BindChannelRequest is the body of POST /v1/sessions/:id/bind-channel.
type BindChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

// BindChannelResponse echoes the bound channel.
type BindChannelResponse struct {
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
}

// EndSessionResponse is the body returned by POST /v1/sessions/:id/end.
type EndSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// SetProviderRequest is the body of POST /v1/sessions/:id/provider.
type SetProviderRequest struct {
	Provider string `json:"provider"`
}

// SetModelRequest is the body of POST /v1/sessions/:id/model.
type SetModelRequest struct {
	Model string `json:"model"`
}

// SetMcpRequest is the body of POST /v1/sessions/:id/mcp.
type SetMcpRequest struct {
	Enabled     bool    `json:"enabled"`
	ProfileName *string `json:"profile_name"`
}

// SetSubagentRequest is the body of POST /v1/sessions/:id/subagent.
// A nil name clears the session's subagent.
type SetSubagentRequest struct {
	Name *string `json:"name"`
}

// SessionConfigResponse reports the session's effective configuration after
// any of the set-* endpoints.
type SessionConfigResponse struct {
	SessionID      string  `json:"session_id"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	McpEnabled     bool    `json:"mcp_enabled"`
	McpProfileName *string `json:"mcp_profile_name"`
	SubagentName   *string `json:"subagent_name"`
}

// SessionConfigFromRecord builds the config response for a record.
func SessionConfigFromRecord(record SessionRecord) SessionConfigResponse {
	return SessionConfigResponse{
		SessionID:      record.SessionID,
		Provider:       record.Provider,
		Model:          record.Model,
		McpEnabled:     record.McpEnabled,
		McpProfileName: record.McpProfileName,
		SubagentName:   record.SubagentName,
	}
}

// CodialRuleAddRequest is the body of POST /v1/codial/rules.
type CodialRuleAddRequest struct {
	Rule string `json:"rule"`
}

// CodialRuleRemoveRequest is the body of DELETE /v1/codial/rules.
// Index is 1-based, matching the numbering shown to users.
type CodialRuleRemoveRequest struct {
	Index int `json:"index"`
}

// CodialRuleResponse lists the current workspace rules.
type CodialRuleResponse struct {
	Rules []string `json:"rules"`
}
