// Package session implements the session use-cases behind the HTTP layer.
// The HTTP handlers keep to transport concerns; defaults derivation and
// configuration validation live here.
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
	"github.com/codial-dev/codial-core/pkg/policy"
	"github.com/codial-dev/codial-core/pkg/providers"
	"github.com/codial-dev/codial-core/pkg/store"
	"github.com/codial-dev/codial-core/pkg/subagent"
)

// Session defaults applied when the workspace AGENTS.md does not set a value.
const (
	defaultModel      = "gpt-5-mini"
	defaultMcpEnabled = true
	defaultMcpProfile = "default"
)

// Service owns session creation and configuration changes.
type Service struct {
	store *store.InMemorySessionStore

	policyLoader *policy.Loader

	// enabledOrder keeps the configured order; the first entry is the
	// fallback default provider.
	enabledOrder  []string
	enabled       map[string]bool
	workspaceRoot string
}

// NewService builds a session service over the shared store.
func NewService(sessionStore *store.InMemorySessionStore, policyLoader *policy.Loader, enabledProviderNames []string, workspaceRoot string) *Service {
	enabled := make(map[string]bool, len(enabledProviderNames))
	for _, name := range enabledProviderNames {
		enabled[name] = true
	}
	return &Service{
		store:         sessionStore,
		policyLoader:  policyLoader,
		enabledOrder:  append([]string(nil), enabledProviderNames...),
		enabled:       enabled,
		workspaceRoot: workspaceRoot,
	}
}

// Create mints a session whose defaults come from the workspace agent
// policy: AGENTS.md values first, built-in fallbacks second, and the
// provider clamped to the enabled set.
func (s *Service) Create(guildID, requesterID, idempotencyKey string) (models.SessionRecord, error) {
	snapshot, err := s.policyLoader.Load()
	if err != nil {
		return models.SessionRecord{}, err
	}
	agentDefaults := policy.ExtractAgentDefaults(snapshot.AgentsText)

	provider := providers.ChooseDefaultProvider(agentDefaults.Provider, s.enabledOrder)
	model := agentDefaults.Model
	if model == "" {
		model = defaultModel
	}
	mcpEnabled := defaultMcpEnabled
	if agentDefaults.McpEnabled != nil {
		mcpEnabled = *agentDefaults.McpEnabled
	}
	profileName := agentDefaults.McpProfileName
	if profileName == "" {
		profileName = defaultMcpProfile
	}

	defaults := models.SessionDefaults{
		Provider:       provider,
		Model:          model,
		McpEnabled:     mcpEnabled,
		McpProfileName: &profileName,
	}
	return s.store.CreateSession(guildID, requesterID, idempotencyKey, defaults), nil
}

// Get returns the current session snapshot.
func (s *Service) Get(sessionID string) (models.SessionRecord, error) {
	return s.store.GetSession(sessionID)
}

// BindChannel attaches the gateway-provisioned channel to the session.
func (s *Service) BindChannel(sessionID, channelID string) (models.SessionRecord, error) {
	return s.store.BindChannel(sessionID, channelID)
}

// End marks the session ended. The record stays readable afterwards.
func (s *Service) End(sessionID string) (models.SessionRecord, error) {
	return s.store.EndSession(sessionID)
}

// SetProvider switches the session's provider after checking it is enabled.
func (s *Service) SetProvider(sessionID, provider string) (models.SessionRecord, error) {
	if !s.enabled[provider] {
		enabledText := strings.Join(s.sortedEnabledNames(), ", ")
		return models.SessionRecord{}, domain.NewValidation(fmt.Sprintf("현재 사용할 수 없는 프로바이더예요. 사용 가능 목록: %s", enabledText))
	}
	return s.store.SetProvider(sessionID, provider)
}

// SetModel switches the session's model.
func (s *Service) SetModel(sessionID, model string) (models.SessionRecord, error) {
	return s.store.SetModel(sessionID, model)
}

// SetMcp toggles MCP and records the profile to use.
func (s *Service) SetMcp(sessionID string, enabled bool, profileName *string) (models.SessionRecord, error) {
	return s.store.SetMcp(sessionID, enabled, profileName)
}

// SetSubagent assigns a discovered subagent to the session. A nil or blank
// name clears the assignment.
func (s *Service) SetSubagent(sessionID string, name *string) (models.SessionRecord, error) {
	normalized := normalizeSubagentName(name)
	if normalized != nil {
		available, err := s.availableSubagentNames()
		if err != nil {
			return models.SessionRecord{}, err
		}
		if !available[*normalized] {
			return models.SessionRecord{}, domain.NewNotFound("서브에이전트를 찾을 수 없어요.")
		}
	}
	return s.store.SetSubagent(sessionID, normalized)
}

func (s *Service) sortedEnabledNames() []string {
	names := make([]string, 0, len(s.enabled))
	for name := range s.enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) availableSubagentNames() (map[string]bool, error) {
	specs, err := subagent.Discover(subagent.DefaultSearchPaths(s.workspaceRoot))
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		names[spec.Name] = true
	}
	return names, nil
}

func normalizeSubagentName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
