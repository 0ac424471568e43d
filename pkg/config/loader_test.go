package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithoutFile(t *testing.T) {
	settings, err := Initialize(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	// Defaults apply when no file exists.
	assert.Equal(t, "codial-core", settings.ServiceName)
	assert.Equal(t, 8081, settings.Port)
	assert.Equal(t, 2, settings.TurnWorkerCount)
	assert.Equal(t, []string{"github-copilot-sdk"}, settings.EnabledProviderNames)
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codial.yaml")
	content := `
port: 9000
turn_worker_count: 4
gateway_base_url: "http://gateway:8080"
enabled_provider_names:
  - github-copilot-sdk
  - claude-sdk
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, settings.Port)
	assert.Equal(t, 4, settings.TurnWorkerCount)
	assert.Equal(t, "http://gateway:8080", settings.GatewayBaseURL)
	assert.Equal(t, []string{"github-copilot-sdk", "claude-sdk"}, settings.EnabledProviderNames)

	// Unset values keep their defaults.
	assert.Equal(t, "dev-core-token", settings.APIToken)
	assert.Equal(t, 10.0, settings.RequestTimeoutSeconds)
}

func TestInitializeExpandsEnvInYAML(t *testing.T) {
	t.Setenv("CODIAL_TEST_GATEWAY", "http://expanded:8080")

	dir := t.TempDir()
	path := filepath.Join(dir, "codial.yaml")
	content := "gateway_base_url: \"{{.CODIAL_TEST_GATEWAY}}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "http://expanded:8080", settings.GatewayBaseURL)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not an int\n"), 0o644))

	_, err := Initialize(path)
	assert.Error(t, err)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\napi_token: from-yaml\n"), 0o644))

	t.Setenv("CODIAL_PORT", "9100")
	t.Setenv("CODIAL_API_TOKEN", "from-env")
	t.Setenv("CODIAL_ENABLED_PROVIDER_NAMES", "a, b ,c")

	settings, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, settings.Port)
	assert.Equal(t, "from-env", settings.APIToken)
	assert.Equal(t, []string{"a", "b", "c"}, settings.EnabledProviderNames)
}

func TestEnvOverrideIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv("CODIAL_TURN_WORKER_COUNT", "many")

	settings, err := Initialize("")
	require.NoError(t, err)

	// The default survives a bad override.
	assert.Equal(t, 2, settings.TurnWorkerCount)
}

func TestParseProviderNames(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"csv", "a,b,c", []string{"a", "b", "c"}},
		{"csv with spaces", " a , b ", []string{"a", "b"}},
		{"empty falls back", "", []string{"github-copilot-sdk"}},
		{"only commas falls back", ",,,", []string{"github-copilot-sdk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseProviderNames(tt.input, "github-copilot-sdk"))
		})
	}
}

func TestTimeoutHelpers(t *testing.T) {
	settings := DefaultSettings()
	assert.Equal(t, "10s", settings.RequestTimeout().String())
	assert.Equal(t, "30s", settings.ProviderBridgeTimeout().String())
	assert.Equal(t, "15s", settings.McpRequestTimeout().String())
}
