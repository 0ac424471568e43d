package api

import (
	"crypto/subtle"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// bearerAuth returns middleware that checks the Authorization header against
// the configured API token. Comparison is constant-time.
func (s *Server) bearerAuth() echo.MiddlewareFunc {
	expected := []byte("Bearer " + s.settings.APIToken)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			header := []byte(c.Request().Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(header, expected) != 1 {
				return writeDomainError(c, domain.NewAuthFailed("인증에 실패했어요."))
			}
			return next(c)
		}
	}
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}
