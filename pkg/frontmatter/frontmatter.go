// Package frontmatter parses the YAML front-matter blocks used by skill,
// command and subagent markdown files.
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Split separates a YAML front-matter block from the markdown body.
// Text without a leading "---" fence is returned whole as the body with an
// empty front-matter map. A fence that opens but never closes is treated
// the same way. Front-matter that parses to something other than a mapping
// is discarded.
func Split(text string) (map[string]any, string, error) {
	stripped := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(stripped, "---\n") {
		return map[string]any{}, strings.TrimSpace(text), nil
	}

	lines := strings.Split(stripped, "\n")
	endIndex := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			endIndex = i
			break
		}
	}
	if endIndex == -1 {
		return map[string]any{}, strings.TrimSpace(text), nil
	}

	frontmatterText := strings.Join(lines[1:endIndex], "\n")
	body := strings.TrimSpace(strings.Join(lines[endIndex+1:], "\n"))

	var loaded any
	if err := yaml.Unmarshal([]byte(frontmatterText), &loaded); err != nil {
		return nil, "", fmt.Errorf("parsing front-matter: %w", err)
	}
	mapping, ok := loaded.(map[string]any)
	if !ok {
		return map[string]any{}, body, nil
	}
	return mapping, body, nil
}

// NormalizeStringList coerces a front-matter value into a list of trimmed,
// non-empty strings. Strings are split on commas; lists keep only their
// string items; anything else yields an empty list.
func NormalizeStringList(value any) []string {
	switch v := value.(type) {
	case string:
		result := []string{}
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	case []any:
		result := []string{}
		for _, item := range v {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					result = append(result, trimmed)
				}
			}
		}
		return result
	default:
		return []string{}
	}
}

// OptionalString returns the trimmed value when it is a non-empty string.
func OptionalString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// OptionalBool returns the value when it is a bool, else the default.
func OptionalBool(value any, def bool) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	return def
}
