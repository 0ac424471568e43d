package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/policy"
	"github.com/codial-dev/codial-core/pkg/store"
)

func newTestService(t *testing.T, workspaceRoot string, enabledProviders ...string) *Service {
	t.Helper()
	if len(enabledProviders) == 0 {
		enabledProviders = []string{"github-copilot-sdk"}
	}
	return NewService(store.NewInMemorySessionStore(), policy.NewLoader(workspaceRoot), enabledProviders, workspaceRoot)
}

func writeWorkspaceFile(t *testing.T, workspaceRoot, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(workspaceRoot, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspaceRoot, name), []byte(content), 0o644))
}

func TestCreateUsesBuiltinDefaults(t *testing.T) {
	service := newTestService(t, t.TempDir())

	record, err := service.Create("guild-1", "user-1", "key-1")

	require.NoError(t, err)
	assert.Equal(t, "github-copilot-sdk", record.Provider)
	assert.Equal(t, "gpt-5-mini", record.Model)
	assert.True(t, record.McpEnabled)
	require.NotNil(t, record.McpProfileName)
	assert.Equal(t, "default", *record.McpProfileName)
	assert.Equal(t, "active", record.Status)
}

func TestCreateReadsAgentDefaults(t *testing.T) {
	workspaceRoot := t.TempDir()
	writeWorkspaceFile(t, workspaceRoot, "AGENTS.md", `# 에이전트 기본값
default_provider: github-copilot-sdk
default_model: gpt-5
default_mcp_enabled: false
default_mcp_profile: research
`)
	service := newTestService(t, workspaceRoot)

	record, err := service.Create("guild-1", "user-1", "key-1")

	require.NoError(t, err)
	assert.Equal(t, "github-copilot-sdk", record.Provider)
	assert.Equal(t, "gpt-5", record.Model)
	assert.False(t, record.McpEnabled)
	require.NotNil(t, record.McpProfileName)
	assert.Equal(t, "research", *record.McpProfileName)
}

func TestCreateFallsBackToFirstEnabledProvider(t *testing.T) {
	workspaceRoot := t.TempDir()
	writeWorkspaceFile(t, workspaceRoot, "AGENTS.md", "default_provider: not-enabled\n")
	service := newTestService(t, workspaceRoot, "zeta-provider", "alpha-provider")

	record, err := service.Create("guild-1", "user-1", "key-1")

	require.NoError(t, err)
	assert.Equal(t, "zeta-provider", record.Provider)
}

func TestCreateIsIdempotent(t *testing.T) {
	service := newTestService(t, t.TempDir())

	first, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)
	second, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSetProviderRejectsDisabledProvider(t *testing.T) {
	service := newTestService(t, t.TempDir(), "zeta-provider", "alpha-provider")
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	_, err = service.SetProvider(record.SessionID, "unknown")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidationFailed))
	assert.Contains(t, err.Error(), "현재 사용할 수 없는 프로바이더예요.")
	assert.Contains(t, err.Error(), "alpha-provider, zeta-provider")
}

func TestSetProviderUpdatesSession(t *testing.T) {
	service := newTestService(t, t.TempDir(), "zeta-provider", "alpha-provider")
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	updated, err := service.SetProvider(record.SessionID, "alpha-provider")

	require.NoError(t, err)
	assert.Equal(t, "alpha-provider", updated.Provider)
}

func TestSetSubagentRejectsUnknownName(t *testing.T) {
	service := newTestService(t, t.TempDir())
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	name := "missing-agent"
	_, err = service.SetSubagent(record.SessionID, &name)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
	assert.Equal(t, "서브에이전트를 찾을 수 없어요.", err.Error())
}

func TestSetSubagentAcceptsDiscoveredName(t *testing.T) {
	workspaceRoot := t.TempDir()
	writeWorkspaceFile(t, workspaceRoot, filepath.Join(".claude", "agents", "reviewer.md"), `---
name: reviewer
description: 코드 리뷰 전담이에요.
---
You review code carefully.
`)
	service := newTestService(t, workspaceRoot)
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	name := " reviewer "
	updated, err := service.SetSubagent(record.SessionID, &name)

	require.NoError(t, err)
	require.NotNil(t, updated.SubagentName)
	assert.Equal(t, "reviewer", *updated.SubagentName)
}

func TestSetSubagentBlankNameClears(t *testing.T) {
	service := newTestService(t, t.TempDir())
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	blank := "   "
	updated, err := service.SetSubagent(record.SessionID, &blank)

	require.NoError(t, err)
	assert.Nil(t, updated.SubagentName)
}

func TestEndKeepsRecordReadable(t *testing.T) {
	service := newTestService(t, t.TempDir())
	record, err := service.Create("guild-1", "user-1", "key-1")
	require.NoError(t, err)

	ended, err := service.End(record.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ended", ended.Status)

	fetched, err := service.Get(record.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ended", fetched.Status)
}
