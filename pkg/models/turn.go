package models

// TurnAttachment describes one file attached to a submitted turn.
type TurnAttachment struct {
	AttachmentID string  `json:"attachment_id"`
	Filename     string  `json:"filename"`
	ContentType  *string `json:"content_type,omitempty"`
	Size         int64   `json:"size"`
	URL          string  `json:"url"`
}

// SubmitTurnRequest is the body of POST /v1/sessions/:id/turns.
type SubmitTurnRequest struct {
	SessionID      string           `json:"session_id"`
	UserID         string           `json:"user_id"`
	ChannelID      string           `json:"channel_id"`
	Text           string           `json:"text"`
	Attachments    []TurnAttachment `json:"attachments"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// TurnAccepted acknowledges an enqueued turn.
type TurnAccepted struct {
	Status  string `json:"status"`
	TraceID string `json:"trace_id"`
	TurnID  string `json:"turn_id"`
}

// TurnTask is one unit of work on the turn queue. The provider/model/MCP
// fields are the session's values frozen at submit time; the engine may
// still override them per turn via a subagent overlay.
type TurnTask struct {
	TurnID         string
	TraceID        string
	SessionID      string
	UserID         string
	Text           string
	Attachments    []TurnAttachment
	Provider       string
	Model          string
	McpEnabled     bool
	McpProfileName *string
	SubagentName   *string
}
