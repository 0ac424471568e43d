package events

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

func sampleEvent() StreamEvent {
	return StreamEvent{
		SessionID: "session-1",
		TurnID:    "turn-1",
		TraceID:   "trace-1",
		Type:      TypeAction,
		Payload:   Payload{Text: "내장 도구 7개를 등록했어요."},
	}
}

// withoutBackoffDelays keeps retry counts intact but removes the waits.
func withoutBackoffDelays(sink *GatewayEventSink) {
	sink.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, publishMaxAttempts-1)
	}
}

func TestPublishSendsEvent(t *testing.T) {
	var attempts atomic.Int64
	var capturedBody []byte
	var capturedHeader http.Header
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		capturedBody = body
		capturedHeader = r.Header.Clone()
		mu.Unlock()
		assert.Equal(t, "/internal/stream-events", r.URL.Path)
	}))
	defer server.Close()
	sink := NewGatewayEventSink(server.URL+"/", "internal-token", 3*time.Second)

	err := sink.Publish(context.Background(), sampleEvent())

	require.NoError(t, err)
	assert.Equal(t, int64(1), attempts.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "internal-token", capturedHeader.Get("x-internal-token"))
	assert.Equal(t, "application/json", capturedHeader.Get("Content-Type"))
	assert.Contains(t, capturedHeader.Get("User-Agent"), "codial-core")
	payload := gjson.ParseBytes(capturedBody)
	assert.Equal(t, "session-1", payload.Get("session_id").String())
	assert.Equal(t, "turn-1", payload.Get("turn_id").String())
	assert.Equal(t, "trace-1", payload.Get("trace_id").String())
	assert.Equal(t, TypeAction, payload.Get("type").String())
	assert.Equal(t, "내장 도구 7개를 등록했어요.", payload.Get("payload.text").String())
}

func TestPublishRetriesServerErrorWithBackoff(t *testing.T) {
	var mu sync.Mutex
	var attemptTimes []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attemptTimes = append(attemptTimes, time.Now())
		first := len(attemptTimes) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()
	sink := NewGatewayEventSink(server.URL, "internal-token", 3*time.Second)

	err := sink.Publish(context.Background(), sampleEvent())

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attemptTimes, 2)
	delay := attemptTimes[1].Sub(attemptTimes[0])
	assert.GreaterOrEqual(t, delay, 240*time.Millisecond)
	assert.Less(t, delay, 2*time.Second)
}

func TestPublishExhaustsAttemptsOnPersistentServerError(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	sink := NewGatewayEventSink(server.URL, "internal-token", 3*time.Second)
	withoutBackoffDelays(sink)

	err := sink.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "게이트웨이 이벤트 수신 서버 오류가 발생했어요.", err.Error())
	assert.Equal(t, int64(publishMaxAttempts), attempts.Load())
}

func TestPublishClientErrorFailsFast(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	sink := NewGatewayEventSink(server.URL, "internal-token", 3*time.Second)
	withoutBackoffDelays(sink)

	err := sink.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	_, isDomain := domain.AsError(err)
	assert.False(t, isDomain)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int64(1), attempts.Load())
}

func TestPublishTimeout(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()
	sink := NewGatewayEventSink(server.URL, "internal-token", 50*time.Millisecond)
	withoutBackoffDelays(sink)

	err := sink.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "게이트웨이 이벤트 전송이 시간 초과됐어요.", err.Error())
	assert.Equal(t, int64(publishMaxAttempts), attempts.Load())
}

func TestPublishNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	sink := NewGatewayEventSink(server.URL, "internal-token", time.Second)
	withoutBackoffDelays(sink)

	err := sink.Publish(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Equal(t, "게이트웨이 이벤트 전송 네트워크 오류가 발생했어요.", err.Error())
}
