package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codial-dev/codial-core/pkg/domain"
)

func TestHealthHandlers(t *testing.T) {
	s := newTestServer(t)

	t.Run("live reports ok", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("ready while the pool runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready once the pool stops", func(t *testing.T) {
		s.pool.Stop()

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		envelope := decodeEnvelope(t, rec)
		assert.Equal(t, string(domain.CodeUpstreamTransient), envelope.ErrorCode)
		assert.Equal(t, "작업 워커를 사용할 수 없어요.", envelope.Message)
	})
}
