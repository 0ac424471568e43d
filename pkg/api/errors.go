package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// statusForCode maps domain error codes to HTTP status codes. Codes missing
// from the map fall back to 500.
var statusForCode = map[domain.ErrorCode]int{
	domain.CodeAuthFailed:        http.StatusUnauthorized,
	domain.CodeValidationFailed:  http.StatusBadRequest,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeSessionEnded:      http.StatusConflict,
	domain.CodeConfiguration:     http.StatusInternalServerError,
	domain.CodeUpstreamTransient: http.StatusBadGateway,
	domain.CodeRateLimited:       http.StatusTooManyRequests,
	domain.CodeTimeout:           http.StatusBadGateway,
}

// writeDomainError renders err as a JSON error envelope. Non-domain errors
// are logged and reported as a generic 500.
func writeDomainError(c *echo.Context, err error) error {
	domainErr, ok := domain.AsError(err)
	if !ok {
		slog.Error("Unexpected service error", "error", err)
		envelope := domain.BuildEnvelope(domain.CodeConfiguration, "요청 처리 중 예상치 못한 오류가 발생했어요.", false)
		return c.JSON(http.StatusInternalServerError, envelope)
	}

	status, ok := statusForCode[domainErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	envelope := domain.BuildEnvelope(domainErr.Code, domainErr.Message, domainErr.Retryable)
	return c.JSON(status, envelope)
}
