package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codial-dev/codial-core/pkg/domain"
)

// Constraints are the allow/deny/required sets parsed from RULES.md.
type Constraints struct {
	AllowProviders map[string]bool
	DenyProviders  map[string]bool
	AllowModels    map[string]bool
	DenyModels     map[string]bool
	RequiredSkills map[string]bool
}

func newConstraints() Constraints {
	return Constraints{
		AllowProviders: map[string]bool{},
		DenyProviders:  map[string]bool{},
		AllowModels:    map[string]bool{},
		DenyModels:     map[string]bool{},
		RequiredSkills: map[string]bool{},
	}
}

// ParseConstraints scans rule text for key:value lines. A leading "- "
// bullet is tolerated; "#" lines are comments. Values are comma-separated
// and accumulate across repeated keys.
func ParseConstraints(rulesText string) Constraints {
	constraints := newConstraints()

	for _, line := range strings.Split(rulesText, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}

		key, value, ok := parseKeyValueLine(stripped)
		if !ok {
			continue
		}

		var target map[string]bool
		switch key {
		case "allow_providers":
			target = constraints.AllowProviders
		case "deny_providers":
			target = constraints.DenyProviders
		case "allow_models":
			target = constraints.AllowModels
		case "deny_models":
			target = constraints.DenyModels
		case "required_skills":
			target = constraints.RequiredSkills
		default:
			continue
		}
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				target[trimmed] = true
			}
		}
	}

	return constraints
}

// Serialize renders the constraints back into rule-text form, one
// key: value line per non-empty set. ParseConstraints(c.Serialize())
// reproduces c.
func (c Constraints) Serialize() string {
	lines := []string{}
	appendSet := func(key string, set map[string]bool) {
		if len(set) == 0 {
			return
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, joinSorted(set)))
	}
	appendSet("allow_providers", c.AllowProviders)
	appendSet("deny_providers", c.DenyProviders)
	appendSet("allow_models", c.AllowModels)
	appendSet("deny_models", c.DenyModels)
	appendSet("required_skills", c.RequiredSkills)
	return strings.Join(lines, "\n")
}

// Enforce validates the provider/model pair and the required skills
// against the constraints.
func Enforce(provider, model string, constraints Constraints, availableSkills []string) error {
	if len(constraints.AllowProviders) > 0 && !constraints.AllowProviders[provider] {
		return domain.NewValidation(fmt.Sprintf(
			"RULES 정책으로 인해 `%s` 프로바이더를 사용할 수 없어요. 허용 목록: %s",
			provider, joinSorted(constraints.AllowProviders)))
	}
	if constraints.DenyProviders[provider] {
		return domain.NewValidation(fmt.Sprintf("RULES 정책으로 인해 `%s` 프로바이더를 사용할 수 없어요.", provider))
	}
	if len(constraints.AllowModels) > 0 && !constraints.AllowModels[model] {
		return domain.NewValidation(fmt.Sprintf(
			"RULES 정책으로 인해 `%s` 모델을 사용할 수 없어요. 허용 목록: %s",
			model, joinSorted(constraints.AllowModels)))
	}
	if constraints.DenyModels[model] {
		return domain.NewValidation(fmt.Sprintf("RULES 정책으로 인해 `%s` 모델을 사용할 수 없어요.", model))
	}

	available := map[string]bool{}
	for _, skill := range availableSkills {
		available[skill] = true
	}
	missing := []string{}
	for skill := range constraints.RequiredSkills {
		if !available[skill] {
			missing = append(missing, skill)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.NewValidation(fmt.Sprintf(
			"RULES 정책에 필요한 스킬이 없어요. 누락된 스킬: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func parseKeyValueLine(line string) (string, string, bool) {
	candidate := line
	if strings.HasPrefix(candidate, "-") {
		candidate = strings.TrimSpace(candidate[1:])
	}
	key, value, found := strings.Cut(candidate, ":")
	if !found {
		return "", "", false
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return "", "", false
	}
	return normalizedKey, strings.TrimSpace(value), true
}

func joinSorted(set map[string]bool) string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
