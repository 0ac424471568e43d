// Package skills discovers Claude skill and command definitions from
// markdown files with YAML front-matter.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/codial-dev/codial-core/pkg/frontmatter"
)

const noDescriptionFallback = "설명이 없어요."

// Skill is one parsed skill or command definition.
type Skill struct {
	Name                   string
	Description            string
	Path                   string
	ArgumentHint           string
	DisableModelInvocation bool
	UserInvocable          bool
	AllowedTools           []string
	Model                  string
	Context                string
	Agent                  string
	MarkdownBody           string
}

// ParseSkillFile parses a <dir>/SKILL.md file. The name falls back to the
// containing directory name.
func ParseSkillFile(path string) (Skill, error) {
	return parseFile(path, filepath.Base(filepath.Dir(path)))
}

// ParseCommandFile parses a standalone command markdown file. The name
// falls back to the file stem.
func ParseCommandFile(path string) (Skill, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseFile(path, stem)
}

func parseFile(path, fallbackName string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, fmt.Errorf("reading skill file: %w", err)
	}

	meta, body, err := frontmatter.Split(string(data))
	if err != nil {
		return Skill{}, fmt.Errorf("skill file %s: %w", path, err)
	}

	name := frontmatter.OptionalString(meta["name"])
	if name == "" {
		name = fallbackName
	}
	description := frontmatter.OptionalString(meta["description"])
	if description == "" {
		description = firstNonEmptyLine(body)
	}

	return Skill{
		Name:                   name,
		Description:            description,
		Path:                   path,
		ArgumentHint:           frontmatter.OptionalString(meta["argument-hint"]),
		DisableModelInvocation: frontmatter.OptionalBool(meta["disable-model-invocation"], false),
		UserInvocable:          frontmatter.OptionalBool(meta["user-invocable"], true),
		AllowedTools:           frontmatter.NormalizeStringList(meta["allowed-tools"]),
		Model:                  frontmatter.OptionalString(meta["model"]),
		Context:                frontmatter.OptionalString(meta["context"]),
		Agent:                  frontmatter.OptionalString(meta["agent"]),
		MarkdownBody:           body,
	}, nil
}

// Discover walks the skill base paths for */SKILL.md and the command base
// paths for *.md. When two definitions share a name the later one wins,
// keeping the first-seen position.
func Discover(skillBasePaths, commandBasePaths []string) ([]Skill, error) {
	discovered := []Skill{}

	for _, base := range skillBasePaths {
		matches, err := globSorted(base, filepath.Join(base, "*", "SKILL.md"))
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			skill, err := ParseSkillFile(match)
			if err != nil {
				return nil, err
			}
			discovered = append(discovered, skill)
		}
	}

	for _, base := range commandBasePaths {
		matches, err := globSorted(base, filepath.Join(base, "*.md"))
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			skill, err := ParseCommandFile(match)
			if err != nil {
				return nil, err
			}
			discovered = append(discovered, skill)
		}
	}

	order := []string{}
	byName := map[string]Skill{}
	for _, skill := range discovered {
		if _, seen := byName[skill.Name]; !seen {
			order = append(order, skill.Name)
		}
		byName[skill.Name] = skill
	}

	result := make([]Skill, 0, len(order))
	for _, name := range order {
		result = append(result, byName[name])
	}
	return result, nil
}

// DefaultSkillSearchPaths lists the global skill directory first so the
// workspace can override same-named skills.
func DefaultSkillSearchPaths(workspaceRoot string) []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".claude", "skills"))
	}
	return append(paths, filepath.Join(workspaceRoot, ".claude", "skills"))
}

// DefaultCommandSearchPaths mirrors DefaultSkillSearchPaths for command
// markdown files.
func DefaultCommandSearchPaths(workspaceRoot string) []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".claude", "commands"))
	}
	return append(paths, filepath.Join(workspaceRoot, ".claude", "commands"))
}

func globSorted(base, pattern string) ([]string, error) {
	info, err := os.Stat(base)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	matches, err := doublestar.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func firstNonEmptyLine(markdownBody string) string {
	for _, line := range strings.Split(markdownBody, "\n") {
		candidate := strings.TrimSpace(line)
		if candidate != "" {
			return truncateRunes(candidate, 200)
		}
	}
	return noDescriptionFallback
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
