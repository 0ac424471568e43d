package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// livenessHandler handles GET /health/live.
func (s *Server) livenessHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler handles GET /health/ready. The service is ready once the
// turn worker pool is running.
func (s *Server) readinessHandler(c *echo.Context) error {
	health := s.pool.Health()
	if !health.Running {
		envelope := domain.BuildEnvelope(domain.CodeUpstreamTransient, "작업 워커를 사용할 수 없어요.", true)
		return c.JSON(http.StatusServiceUnavailable, envelope)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
