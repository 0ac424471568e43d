package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
	"github.com/codial-dev/codial-core/pkg/rules"
)

// listRulesHandler handles GET /v1/codial/rules.
func (s *Server) listRulesHandler(c *echo.Context) error {
	list, err := s.rules.List()
	if err != nil {
		return writeDomainError(c, domain.NewConfiguration("규칙 파일을 읽지 못했어요.").WithCause(err))
	}
	return c.JSON(http.StatusOK, models.CodialRuleResponse{Rules: list})
}

// addRuleHandler handles POST /v1/codial/rules.
func (s *Server) addRuleHandler(c *echo.Context) error {
	var req models.CodialRuleAddRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}
	if req.Rule == "" {
		return writeDomainError(c, domain.NewValidation("추가할 규칙을 입력해 주세요."))
	}

	list, err := s.rules.Add(req.Rule)
	if err != nil {
		return writeDomainError(c, domain.NewConfiguration("규칙 파일을 저장하지 못했어요.").WithCause(err))
	}
	return c.JSON(http.StatusOK, models.CodialRuleResponse{Rules: list})
}

// removeRuleHandler handles DELETE /v1/codial/rules. The index is 1-based.
func (s *Server) removeRuleHandler(c *echo.Context) error {
	var req models.CodialRuleRemoveRequest
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, domain.NewValidation("요청 본문이 올바르지 않아요."))
	}

	list, err := s.rules.Remove(req.Index)
	if err != nil {
		if errors.Is(err, rules.ErrIndexOutOfRange) {
			return writeDomainError(c, domain.NewValidation("규칙 번호가 올바르지 않아요."))
		}
		return writeDomainError(c, domain.NewConfiguration("규칙 파일을 저장하지 못했어요.").WithCause(err))
	}
	return c.JSON(http.StatusOK, models.CodialRuleResponse{Rules: list})
}
