package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// CopilotAuthSettings configures the copilot token bootstrap.
type CopilotAuthSettings struct {
	BridgeBaseURL    string
	BridgeToken      string
	Timeout          time.Duration
	CachePath        string
	WorkspaceRoot    string
	AutoLoginEnabled bool
	LoginEndpoint    string
}

// CopilotAuthBootstrapper resolves the bridge token used by the copilot
// adapter. Resolution order: configured token, cache file, auto-login.
type CopilotAuthBootstrapper struct {
	settings CopilotAuthSettings
	client   *http.Client
}

func NewCopilotAuthBootstrapper(settings CopilotAuthSettings) *CopilotAuthBootstrapper {
	return &CopilotAuthBootstrapper{
		settings: settings,
		client:   &http.Client{Timeout: settings.Timeout},
	}
}

// EnsureToken returns a usable bridge token, refreshing the cache file so
// later runs can skip the login round trip.
func (b *CopilotAuthBootstrapper) EnsureToken(ctx context.Context) (string, error) {
	if b.settings.BridgeToken != "" {
		if err := b.writeCachedToken(b.settings.BridgeToken); err != nil {
			return "", err
		}
		slog.Info("copilot_auth_ready", "source", "env", "cache_path", b.cacheFilePath())
		return b.settings.BridgeToken, nil
	}

	if cached := b.readCachedToken(); cached != "" {
		slog.Info("copilot_auth_ready", "source", "cache", "cache_path", b.cacheFilePath())
		return cached, nil
	}

	if !b.settings.AutoLoginEnabled {
		return "", domain.NewConfiguration("Copilot 로그인 토큰이 없고 자동 로그인이 비활성화되어 있어요.")
	}

	token, err := b.requestLoginToken(ctx)
	if err != nil {
		return "", err
	}
	if err := b.writeCachedToken(token); err != nil {
		return "", err
	}
	slog.Info("copilot_auth_ready", "source", "login", "cache_path", b.cacheFilePath())
	return token, nil
}

func (b *CopilotAuthBootstrapper) cacheFilePath() string {
	if filepath.IsAbs(b.settings.CachePath) {
		return b.settings.CachePath
	}
	return filepath.Join(b.settings.WorkspaceRoot, b.settings.CachePath)
}

// readCachedToken returns the cached token, or empty when the cache is
// missing or unreadable.
func (b *CopilotAuthBootstrapper) readCachedToken() string {
	raw, err := os.ReadFile(b.cacheFilePath())
	if err != nil {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	token, _ := payload["token"].(string)
	return token
}

func (b *CopilotAuthBootstrapper) writeCachedToken(token string) error {
	cachePath := b.cacheFilePath()
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("failed to prepare copilot auth cache dir: %w", err)
	}
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("failed to marshal copilot auth cache: %w", err)
	}
	if err := os.WriteFile(cachePath, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write copilot auth cache: %w", err)
	}
	return nil
}

func (b *CopilotAuthBootstrapper) requestLoginToken(ctx context.Context) (string, error) {
	baseURL := strings.TrimRight(b.settings.BridgeBaseURL, "/")
	if baseURL == "" {
		return "", domain.NewConfiguration("Copilot 브리지 주소가 설정되지 않아 자동 로그인을 진행할 수 없어요.")
	}

	endpoint := strings.TrimSpace(b.settings.LoginEndpoint)
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+endpoint, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to build copilot login request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := b.client.Do(request)
	if err != nil {
		if domain.IsTimeout(err) {
			return "", domain.NewUpstreamTransient("Copilot 자동 로그인 요청이 시간 초과됐어요.").WithCause(err)
		}
		return "", domain.NewUpstreamTransient("Copilot 자동 로그인 요청 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 500 {
		return "", domain.NewUpstreamTransient("Copilot 자동 로그인 서버 오류가 발생했어요.")
	}
	if response.StatusCode >= 400 {
		return "", domain.NewConfiguration(fmt.Sprintf("Copilot 자동 로그인 요청이 거부됐어요. status=%d", response.StatusCode))
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return "", domain.NewUpstreamTransient("Copilot 자동 로그인 요청 중 네트워크 오류가 발생했어요.").WithCause(err)
	}
	if !gjson.ValidBytes(raw) {
		return "", domain.NewConfiguration("Copilot 자동 로그인 응답이 JSON 형식이 아니에요.")
	}

	token := extractToken(gjson.ParseBytes(raw))
	if token == "" {
		return "", domain.NewConfiguration("Copilot 자동 로그인 응답에서 토큰을 찾지 못했어요.")
	}
	return token, nil
}

// extractToken pulls the first usable token field from a login response,
// descending into a nested "data" object when the top level has none.
func extractToken(body gjson.Result) string {
	if !body.IsObject() {
		return ""
	}
	for _, key := range []string{"token", "access_token", "bearer_token", "api_key"} {
		if value := body.Get(key); value.Type == gjson.String && value.String() != "" {
			return value.String()
		}
	}
	if nested := body.Get("data"); nested.IsObject() {
		return extractToken(nested)
	}
	return ""
}
