package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codial-dev/codial-core/pkg/config"
	"github.com/codial-dev/codial-core/pkg/domain"
)

// adapterFactory builds one provider's adapter from runtime settings. A
// non-nil tokenOverride replaces the configured bridge token, letting the
// auth bootstrapper inject a freshly acquired one.
type adapterFactory func(settings *config.Settings, tokenOverride *string) Adapter

// The provider factory table. Adding a provider means adding a row here.
var providerFactories = map[string]adapterFactory{
	"github-copilot-sdk": func(settings *config.Settings, tokenOverride *string) Adapter {
		token := settings.CopilotBridgeToken
		if tokenOverride != nil {
			token = *tokenOverride
		}
		return NewBridgeAdapter(
			"github-copilot-sdk",
			"GitHub Copilot SDK",
			settings.CopilotBridgeBaseURL,
			token,
			settings.ProviderBridgeTimeout(),
		)
	},
}

// KnownProviderNames returns the names the factory table supports, sorted.
func KnownProviderNames() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetEnabledProviderNames validates the configured provider list against the
// factory table. An empty list falls back to the default provider name.
func GetEnabledProviderNames(names []string, fallbackDefault string) ([]string, error) {
	resolved := names
	if len(resolved) == 0 {
		resolved = []string{fallbackDefault}
	}

	var unknown []string
	for _, name := range resolved {
		if _, known := providerFactories[name]; !known {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.NewConfiguration(fmt.Sprintf(
			"알 수 없는 프로바이더가 설정됐어요: %s. 지원 목록: %s",
			strings.Join(unknown, ", "),
			strings.Join(KnownProviderNames(), ", "),
		))
	}
	return resolved, nil
}

// ChooseDefaultProvider picks the session default: the preferred name when
// it is enabled, otherwise the first enabled provider. The enabled list must
// be non-empty.
func ChooseDefaultProvider(preferred string, enabled []string) string {
	if preferred != "" {
		for _, name := range enabled {
			if name == preferred {
				return preferred
			}
		}
	}
	return enabled[0]
}

// BuildAdapters constructs adapters for the enabled providers, keyed by
// name. Names without a factory are skipped silently; validation happens in
// GetEnabledProviderNames.
func BuildAdapters(settings *config.Settings, enabled []string, copilotTokenOverride *string) map[string]Adapter {
	adapters := make(map[string]Adapter, len(enabled))
	for _, name := range enabled {
		factory, known := providerFactories[name]
		if !known {
			continue
		}
		adapters[name] = factory(settings, copilotTokenOverride)
	}
	return adapters
}
