package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
)

// submitTurnHandler handles POST /v1/sessions/:id/turns. The turn is
// enqueued for asynchronous processing; results arrive on the event stream.
func (s *Server) submitTurnHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.SubmitTurnRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.UserID == "" || req.ChannelID == "" {
		return writeDomainError(c, domain.NewValidation("user_id와 channel_id는 필수예요."))
	}
	for _, attachment := range req.Attachments {
		if attachment.AttachmentID == "" || attachment.Filename == "" || attachment.URL == "" || attachment.Size < 0 {
			return writeDomainError(c, domain.NewValidation("첨부파일 정보가 올바르지 않아요."))
		}
	}
	// The path id is authoritative; the body copy is informational.
	req.SessionID = sessionID

	accepted, err := s.turns.Submit(c.Request().Context(), sessionID, req)
	if err != nil {
		return writeDomainError(c, err)
	}

	slog.Info("turn_received",
		"trace_id", accepted.TraceID,
		"session_id", sessionID,
		"turn_id", accepted.TurnID,
		"user_id", req.UserID,
		"channel_id", req.ChannelID,
		"idempotency_key", req.IdempotencyKey,
		"has_text", req.Text != "",
		"attachment_count", len(req.Attachments))

	return c.JSON(http.StatusAccepted, accepted)
}
