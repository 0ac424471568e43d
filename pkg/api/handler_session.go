package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
)

// createSessionHandler handles POST /v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req models.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.GuildID == "" || req.RequesterID == "" || req.IdempotencyKey == "" {
		return writeDomainError(c, domain.NewValidation("guild_id, requester_id, idempotency_key는 모두 필수예요."))
	}

	record, err := s.sessions.Create(req.GuildID, req.RequesterID, req.IdempotencyKey)
	if err != nil {
		return writeDomainError(c, err)
	}

	slog.Info("session_created",
		"session_id", record.SessionID,
		"guild_id", record.GuildID)

	return c.JSON(http.StatusOK, models.CreateSessionResponse{
		SessionID: record.SessionID,
		Status:    record.Status,
	})
}

// bindChannelHandler handles POST /v1/sessions/:id/bind-channel.
func (s *Server) bindChannelHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.BindChannelRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.ChannelID == "" {
		return writeDomainError(c, domain.NewValidation("channel_id는 필수예요."))
	}

	record, err := s.sessions.BindChannel(sessionID, req.ChannelID)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.BindChannelResponse{
		SessionID: record.SessionID,
		ChannelID: req.ChannelID,
		Status:    record.Status,
	})
}

// endSessionHandler handles POST /v1/sessions/:id/end.
func (s *Server) endSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	record, err := s.sessions.End(sessionID)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.EndSessionResponse{
		SessionID: record.SessionID,
		Status:    record.Status,
	})
}

// setProviderHandler handles POST /v1/sessions/:id/provider.
func (s *Server) setProviderHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.SetProviderRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.Provider == "" {
		return writeDomainError(c, domain.NewValidation("provider는 필수예요."))
	}

	record, err := s.sessions.SetProvider(sessionID, req.Provider)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SessionConfigFromRecord(record))
}

// setModelHandler handles POST /v1/sessions/:id/model.
func (s *Server) setModelHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.SetModelRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.Model == "" {
		return writeDomainError(c, domain.NewValidation("model은 필수예요."))
	}

	record, err := s.sessions.SetModel(sessionID, req.Model)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SessionConfigFromRecord(record))
}

// setMcpHandler handles POST /v1/sessions/:id/mcp.
func (s *Server) setMcpHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.SetMcpRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}

	record, err := s.sessions.SetMcp(sessionID, req.Enabled, req.ProfileName)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SessionConfigFromRecord(record))
}

// setSubagentHandler handles POST /v1/sessions/:id/subagent.
// A null or blank name clears the session's subagent.
func (s *Server) setSubagentHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return writeDomainError(c, domain.NewValidation("세션 ID가 필요해요."))
	}

	var req models.SetSubagentRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}

	record, err := s.sessions.SetSubagent(sessionID, req.Name)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SessionConfigFromRecord(record))
}
