package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

func authSettings(workspaceRoot string) CopilotAuthSettings {
	return CopilotAuthSettings{
		BridgeBaseURL:    "http://bridge.local",
		BridgeToken:      "",
		Timeout:          3 * time.Second,
		CachePath:        ".runtime/copilot-auth.json",
		WorkspaceRoot:    workspaceRoot,
		AutoLoginEnabled: true,
		LoginEndpoint:    "/v1/auth/login",
	}
}

func TestEnsureTokenPrefersEnvTokenAndWritesCache(t *testing.T) {
	dir := t.TempDir()
	settings := authSettings(dir)
	settings.BridgeToken = "env-token"
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	token, err := bootstrapper.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "env-token", token)

	cached, err := os.ReadFile(filepath.Join(dir, ".runtime", "copilot-auth.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"env-token"}`, string(cached))
}

func TestEnsureTokenUsesCacheBeforeLogin(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".runtime", "copilot-auth.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0o755))
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"token":"cached-token"}`), 0o600))

	loginCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginCalls++
		_, _ = w.Write([]byte(`{"token":"login-token"}`))
	}))
	defer server.Close()
	settings := authSettings(dir)
	settings.BridgeBaseURL = server.URL
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	token, err := bootstrapper.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
	assert.Equal(t, 0, loginCalls)
}

func TestEnsureTokenAutoLoginWhenCacheMissing(t *testing.T) {
	dir := t.TempDir()
	loginCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loginCalls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"login-token"}`))
	}))
	defer server.Close()
	settings := authSettings(dir)
	settings.BridgeBaseURL = server.URL
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	token, err := bootstrapper.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "login-token", token)
	assert.Equal(t, 1, loginCalls)

	cached, err := os.ReadFile(filepath.Join(dir, ".runtime", "copilot-auth.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"login-token"}`, string(cached))
}

func TestEnsureTokenFailsWhenAutoLoginDisabled(t *testing.T) {
	settings := authSettings(t.TempDir())
	settings.AutoLoginEnabled = false
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	_, err := bootstrapper.EnsureToken(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConfiguration))
	assert.Contains(t, err.Error(), "자동 로그인이 비활성화")
}

func TestEnsureTokenIgnoresCorruptCache(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".runtime", "copilot-auth.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0o755))
	require.NoError(t, os.WriteFile(cachePath, []byte("not json"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"login-token"}`))
	}))
	defer server.Close()
	settings := authSettings(dir)
	settings.BridgeBaseURL = server.URL
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	token, err := bootstrapper.EnsureToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "login-token", token)
}

func TestRequestLoginTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	settings := authSettings(t.TempDir())
	settings.BridgeBaseURL = server.URL
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	_, err := bootstrapper.EnsureToken(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConfiguration))
	assert.Contains(t, err.Error(), "status=401")
}

func TestRequestLoginTokenServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	settings := authSettings(t.TempDir())
	settings.BridgeBaseURL = server.URL
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	_, err := bootstrapper.EnsureToken(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeUpstreamTransient))
	assert.Contains(t, err.Error(), "서버 오류")
}

func TestRequestLoginTokenRequiresBaseURL(t *testing.T) {
	settings := authSettings(t.TempDir())
	settings.BridgeBaseURL = ""
	bootstrapper := NewCopilotAuthBootstrapper(settings)

	_, err := bootstrapper.EnsureToken(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConfiguration))
	assert.Contains(t, err.Error(), "자동 로그인을 진행할 수 없어요")
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"top level token", `{"token":"t1"}`, "t1"},
		{"access token", `{"access_token":"t2"}`, "t2"},
		{"bearer token", `{"bearer_token":"t3"}`, "t3"},
		{"api key", `{"api_key":"t4"}`, "t4"},
		{"nested data", `{"data":{"access_token":"t5"}}`, "t5"},
		{"empty values skipped", `{"token":"","access_token":"t6"}`, "t6"},
		{"no token", `{"status":"ok"}`, ""},
		{"not an object", `[1,2,3]`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractToken(gjson.Parse(tc.body)))
		})
	}
}
