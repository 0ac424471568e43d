// Package events defines the turn lifecycle event model and the HTTP sink
// that delivers events to the gateway.
package events

import "context"

// Sink delivers stream events to the gateway. Publish returns once the
// event is durably handed off or retries are exhausted.
type Sink interface {
	Publish(ctx context.Context, event StreamEvent) error
}

// Event types published over a turn's lifetime. Every turn opens with plan
// and closes with exactly one of final or error.
const (
	TypePlan            = "plan"
	TypeAction          = "action"
	TypeDecisionSummary = "decision_summary"
	TypeResponseDelta   = "response_delta"
	TypeFinal           = "final"
	TypeError           = "error"
)

// Payload carries the human-readable body of an event.
type Payload struct {
	Text string `json:"text"`
}

// StreamEvent is one lifecycle event of a single turn, addressed by the
// session/turn/trace triple so the gateway can route and order it.
type StreamEvent struct {
	SessionID string  `json:"session_id"`
	TurnID    string  `json:"turn_id"`
	TraceID   string  `json:"trace_id"`
	Type      string  `json:"type"`
	Payload   Payload `json:"payload"`
}
