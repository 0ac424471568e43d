package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/version"
)

const (
	// publishMaxAttempts bounds the total number of POSTs per event,
	// including the first try.
	publishMaxAttempts = 4

	publishBackoffBase   = 300 * time.Millisecond
	publishJitterFactor  = 0.2
	publishBackoffGrowth = 2.0
)

// GatewayEventSink posts stream events to the gateway's internal intake
// endpoint. Each publish runs its own request/retry cycle; the underlying
// HTTP client pool is the only shared state.
type GatewayEventSink struct {
	baseURL string
	token   string
	client  *http.Client

	// newBackOff is swapped out by tests that must not sleep.
	newBackOff func() backoff.BackOff
}

// NewGatewayEventSink builds a sink for the given gateway base URL.
func NewGatewayEventSink(baseURL, token string, timeout time.Duration) *GatewayEventSink {
	return &GatewayEventSink{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: timeout},
		newBackOff: newPublishBackOff,
	}
}

// Close releases pooled connections.
func (s *GatewayEventSink) Close() {
	s.client.CloseIdleConnections()
}

// Publish delivers one event, retrying timeouts, network errors and 5xx
// responses with jittered exponential backoff. A 4xx rejection fails
// immediately. After the final attempt the transient error is returned.
func (s *GatewayEventSink) Publish(ctx context.Context, event StreamEvent) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}

	operation := func() error {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/internal/stream-events", bytes.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build stream event request: %w", err))
		}
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("User-Agent", version.Full())
		request.Header.Set("x-internal-token", s.token)

		response, err := s.client.Do(request)
		if err != nil {
			if domain.IsTimeout(err) {
				return domain.NewUpstreamTransient("게이트웨이 이벤트 전송이 시간 초과됐어요.").WithCause(err)
			}
			return domain.NewUpstreamTransient("게이트웨이 이벤트 전송 네트워크 오류가 발생했어요.").WithCause(err)
		}
		defer response.Body.Close()
		_, _ = io.Copy(io.Discard, response.Body)

		if response.StatusCode >= 500 {
			return domain.NewUpstreamTransient("게이트웨이 이벤트 수신 서버 오류가 발생했어요.")
		}
		if response.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("gateway rejected stream event: status %d", response.StatusCode))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(s.newBackOff(), ctx))
}

func newPublishBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = publishBackoffBase
	b.RandomizationFactor = publishJitterFactor
	b.Multiplier = publishBackoffGrowth
	return backoff.WithMaxRetries(b, publishMaxAttempts-1)
}
