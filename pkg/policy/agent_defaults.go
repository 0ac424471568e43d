package policy

import "strings"

// AgentDefaults are the session defaults declared in AGENTS.md. Empty
// strings and a nil McpEnabled mean the file did not set the field.
type AgentDefaults struct {
	Provider       string
	Model          string
	McpEnabled     *bool
	McpProfileName string
}

// ExtractAgentDefaults scans agents text for default_provider,
// default_model, default_mcp_enabled and default_mcp_profile lines.
func ExtractAgentDefaults(agentsText string) AgentDefaults {
	defaults := AgentDefaults{}

	for _, rawLine := range strings.Split(agentsText, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		normalizedKey := strings.ToLower(strings.TrimSpace(key))
		normalizedValue := strings.TrimSpace(value)
		if normalizedValue == "" {
			continue
		}

		switch normalizedKey {
		case "default_provider":
			defaults.Provider = normalizedValue
		case "default_model":
			defaults.Model = normalizedValue
		case "default_mcp_enabled":
			switch strings.ToLower(normalizedValue) {
			case "true", "yes", "1":
				enabled := true
				defaults.McpEnabled = &enabled
			case "false", "no", "0":
				enabled := false
				defaults.McpEnabled = &enabled
			}
		case "default_mcp_profile":
			defaults.McpProfileName = normalizedValue
		}
	}

	return defaults
}
