package turns

import (
	"context"

	"github.com/google/uuid"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
	"github.com/codial-dev/codial-core/pkg/queue"
	"github.com/codial-dev/codial-core/pkg/store"
)

// Service accepts turn submissions: it freezes the session's configuration
// into a task and hands it to the worker pool.
type Service struct {
	store *store.InMemorySessionStore
	pool  *queue.TurnWorkerPool
}

// NewService builds the submit use-case over the shared store and pool.
func NewService(sessionStore *store.InMemorySessionStore, pool *queue.TurnWorkerPool) *Service {
	return &Service{store: sessionStore, pool: pool}
}

// Submit validates the session, mints a trace id, and enqueues the turn.
// The session's provider/model/MCP/subagent settings are captured at this
// point; later session changes do not affect the queued turn.
func (s *Service) Submit(ctx context.Context, sessionID string, request models.SubmitTurnRequest) (models.TurnAccepted, error) {
	record, err := s.store.GetSession(sessionID)
	if err != nil {
		return models.TurnAccepted{}, err
	}
	if record.Status == models.SessionStatusEnded {
		return models.TurnAccepted{}, domain.NewSessionEnded("종료된 세션에는 요청할 수 없어요.")
	}

	task := models.TurnTask{
		TraceID:        uuid.NewString(),
		SessionID:      sessionID,
		UserID:         request.UserID,
		Text:           request.Text,
		Attachments:    request.Attachments,
		Provider:       record.Provider,
		Model:          record.Model,
		McpEnabled:     record.McpEnabled,
		McpProfileName: record.McpProfileName,
		SubagentName:   record.SubagentName,
	}
	queued, err := s.pool.Enqueue(ctx, task)
	if err != nil {
		return models.TurnAccepted{}, err
	}

	return models.TurnAccepted{
		Status:  "accepted",
		TraceID: queued.TraceID,
		TurnID:  queued.TurnID,
	}, nil
}
