// Package config loads and validates service configuration. Values come from
// three layers: built-in defaults, an optional YAML file merged on top, and
// CODIAL_* environment variables applied last.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Settings is the complete runtime configuration of the service.
type Settings struct {
	ServiceName string `yaml:"service_name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`

	// APIToken authenticates ingress requests (Authorization: Bearer <token>).
	APIToken string `yaml:"api_token"`

	GatewayBaseURL        string  `yaml:"gateway_base_url"`
	GatewayInternalToken  string  `yaml:"gateway_internal_token"`
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`

	TurnWorkerCount int `yaml:"turn_worker_count"`

	DefaultProviderName  string   `yaml:"default_provider_name"`
	EnabledProviderNames []string `yaml:"enabled_provider_names"`

	CopilotBridgeBaseURL         string  `yaml:"copilot_bridge_base_url"`
	CopilotBridgeToken           string  `yaml:"copilot_bridge_token"`
	ProviderBridgeTimeoutSeconds float64 `yaml:"provider_bridge_timeout_seconds"`
	CopilotAutoLoginEnabled      bool    `yaml:"copilot_auto_login_enabled"`
	CopilotAuthCachePath         string  `yaml:"copilot_auth_cache_path"`
	CopilotLoginEndpoint         string  `yaml:"copilot_login_endpoint"`

	McpServerURL             string  `yaml:"mcp_server_url"`
	McpServerToken           string  `yaml:"mcp_server_token"`
	McpRequestTimeoutSeconds float64 `yaml:"mcp_request_timeout_seconds"`

	// ProviderLoopMaxRounds caps the provider/tool round trips within one
	// turn. Zero means unbounded.
	ProviderLoopMaxRounds int `yaml:"provider_loop_max_rounds"`

	AttachmentDownloadEnabled  bool   `yaml:"attachment_download_enabled"`
	AttachmentDownloadMaxBytes int64  `yaml:"attachment_download_max_bytes"`
	AttachmentStorageDir       string `yaml:"attachment_storage_dir"`

	WorkspaceRoot string `yaml:"workspace_root"`
}

// DefaultSettings returns the built-in defaults. They mirror a local
// development setup; production deployments override the tokens and URLs.
func DefaultSettings() *Settings {
	return &Settings{
		ServiceName:                  "codial-core",
		Host:                         "0.0.0.0",
		Port:                         8081,
		APIToken:                     "dev-core-token",
		GatewayBaseURL:               "http://localhost:8080",
		GatewayInternalToken:         "dev-internal-token",
		RequestTimeoutSeconds:        10.0,
		TurnWorkerCount:              2,
		DefaultProviderName:          "github-copilot-sdk",
		EnabledProviderNames:         []string{"github-copilot-sdk"},
		CopilotBridgeBaseURL:         "",
		CopilotBridgeToken:           "",
		ProviderBridgeTimeoutSeconds: 30.0,
		CopilotAutoLoginEnabled:      true,
		CopilotAuthCachePath:         ".runtime/copilot-auth.json",
		CopilotLoginEndpoint:         "/v1/auth/login",
		McpServerURL:                 "",
		McpServerToken:               "",
		McpRequestTimeoutSeconds:     15.0,
		ProviderLoopMaxRounds:        0,
		AttachmentDownloadEnabled:    false,
		AttachmentDownloadMaxBytes:   10_000_000,
		AttachmentStorageDir:         ".runtime/attachments",
		WorkspaceRoot:                ".",
	}
}

// RequestTimeout returns the gateway/attachment HTTP deadline.
func (s *Settings) RequestTimeout() time.Duration {
	return secondsToDuration(s.RequestTimeoutSeconds)
}

// ProviderBridgeTimeout returns the provider bridge HTTP deadline.
func (s *Settings) ProviderBridgeTimeout() time.Duration {
	return secondsToDuration(s.ProviderBridgeTimeoutSeconds)
}

// McpRequestTimeout returns the MCP HTTP deadline.
func (s *Settings) McpRequestTimeout() time.Duration {
	return secondsToDuration(s.McpRequestTimeoutSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ParseProviderNames normalizes a comma-separated provider list. Empty input
// falls back to the given default so a blank env var cannot disable every
// provider by accident.
func ParseProviderNames(value string, fallback string) []string {
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return []string{fallback}
	}
	return parts
}

// insecureTokens are development defaults that must not reach production.
var insecureTokens = map[string]struct{}{
	"dev-core-token":     {},
	"dev-internal-token": {},
	"":                   {},
}

// WarnInsecureTokens logs a warning for every token still on its development
// default value.
func (s *Settings) WarnInsecureTokens() {
	if _, insecure := insecureTokens[s.APIToken]; insecure {
		slog.Warn("CODIAL_API_TOKEN이 기본값이에요. 프로덕션 환경에서는 반드시 교체해야 해요.")
	}
	if _, insecure := insecureTokens[s.GatewayInternalToken]; insecure {
		slog.Warn("CODIAL_GATEWAY_INTERNAL_TOKEN이 기본값이에요. 프로덕션 환경에서는 반드시 교체해야 해요.")
	}
}
