package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Load the YAML file at configPath (missing file is fine)
//  3. Expand {{.VAR}} environment references in the YAML text
//  4. Merge YAML values over the defaults
//  5. Apply CODIAL_* environment overrides
//  6. Warn about insecure development tokens
func Initialize(configPath string) (*Settings, error) {
	settings := DefaultSettings()

	if configPath != "" {
		fileSettings, err := loadYAML(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		if fileSettings != nil {
			if err := mergo.Merge(settings, fileSettings, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge configuration: %w", err)
			}
		}
	}

	applyEnvOverrides(settings)
	settings.WarnInsecureTokens()

	slog.Info("Configuration initialized",
		"service", settings.ServiceName,
		"workers", settings.TurnWorkerCount,
		"default_provider", settings.DefaultProviderName,
		"mcp_configured", settings.McpServerURL != "")

	return settings, nil
}

// loadYAML reads and parses one settings file. A missing file returns
// (nil, nil) so local runs work without any config on disk.
func loadYAML(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("No configuration file found, using defaults", "path", path)
			return nil, nil
		}
		return nil, err
	}

	expanded := ExpandEnv(data)

	var settings Settings
	if err := yaml.Unmarshal(expanded, &settings); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &settings, nil
}

// applyEnvOverrides applies CODIAL_* environment variables on top of the
// merged settings. Unparseable numeric values are ignored with a warning
// rather than failing startup.
func applyEnvOverrides(s *Settings) {
	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
	setInt := func(key string, target *int) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				slog.Warn("Ignoring unparseable integer environment override", "key", key, "value", v)
				return
			}
			*target = parsed
		}
	}
	setInt64 := func(key string, target *int64) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				slog.Warn("Ignoring unparseable integer environment override", "key", key, "value", v)
				return
			}
			*target = parsed
		}
	}
	setFloat := func(key string, target *float64) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				slog.Warn("Ignoring unparseable float environment override", "key", key, "value", v)
				return
			}
			*target = parsed
		}
	}
	setBool := func(key string, target *bool) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				slog.Warn("Ignoring unparseable boolean environment override", "key", key, "value", v)
				return
			}
			*target = parsed
		}
	}

	setString("CODIAL_SERVICE_NAME", &s.ServiceName)
	setString("CODIAL_HOST", &s.Host)
	setInt("CODIAL_PORT", &s.Port)
	setString("CODIAL_API_TOKEN", &s.APIToken)
	setString("CODIAL_GATEWAY_BASE_URL", &s.GatewayBaseURL)
	setString("CODIAL_GATEWAY_INTERNAL_TOKEN", &s.GatewayInternalToken)
	setFloat("CODIAL_REQUEST_TIMEOUT_SECONDS", &s.RequestTimeoutSeconds)
	setInt("CODIAL_TURN_WORKER_COUNT", &s.TurnWorkerCount)
	setString("CODIAL_DEFAULT_PROVIDER_NAME", &s.DefaultProviderName)
	if v, ok := os.LookupEnv("CODIAL_ENABLED_PROVIDER_NAMES"); ok {
		s.EnabledProviderNames = ParseProviderNames(v, s.DefaultProviderName)
	}
	setString("CODIAL_COPILOT_BRIDGE_BASE_URL", &s.CopilotBridgeBaseURL)
	setString("CODIAL_COPILOT_BRIDGE_TOKEN", &s.CopilotBridgeToken)
	setFloat("CODIAL_PROVIDER_BRIDGE_TIMEOUT_SECONDS", &s.ProviderBridgeTimeoutSeconds)
	setBool("CODIAL_COPILOT_AUTO_LOGIN_ENABLED", &s.CopilotAutoLoginEnabled)
	setString("CODIAL_COPILOT_AUTH_CACHE_PATH", &s.CopilotAuthCachePath)
	setString("CODIAL_COPILOT_LOGIN_ENDPOINT", &s.CopilotLoginEndpoint)
	setString("CODIAL_MCP_SERVER_URL", &s.McpServerURL)
	setString("CODIAL_MCP_SERVER_TOKEN", &s.McpServerToken)
	setFloat("CODIAL_MCP_REQUEST_TIMEOUT_SECONDS", &s.McpRequestTimeoutSeconds)
	setInt("CODIAL_PROVIDER_LOOP_MAX_ROUNDS", &s.ProviderLoopMaxRounds)
	setBool("CODIAL_ATTACHMENT_DOWNLOAD_ENABLED", &s.AttachmentDownloadEnabled)
	setInt64("CODIAL_ATTACHMENT_DOWNLOAD_MAX_BYTES", &s.AttachmentDownloadMaxBytes)
	setString("CODIAL_ATTACHMENT_STORAGE_DIR", &s.AttachmentStorageDir)
	setString("CODIAL_WORKSPACE_ROOT", &s.WorkspaceRoot)
}
