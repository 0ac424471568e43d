// Package subagent discovers subagent definitions from markdown files with
// YAML front-matter. The body of a definition file is the subagent prompt.
package subagent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/codial-dev/codial-core/pkg/frontmatter"
)

// Spec is one parsed subagent definition.
type Spec struct {
	Name            string
	Description     string
	Prompt          string
	Tools           []string
	DisallowedTools []string
	// Model is "inherit" unless the front-matter names a concrete model.
	Model          string
	PermissionMode string
	// MaxTurns is zero when unset or not a positive integer.
	MaxTurns   int
	Skills     []string
	McpServers []string
	Hooks      map[string][]map[string]any
	Memory     string
	SourcePath string
}

// ParseFile parses a single subagent markdown file.
func ParseFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("reading subagent file: %w", err)
	}

	meta, prompt, err := frontmatter.Split(string(data))
	if err != nil {
		return Spec{}, fmt.Errorf("subagent file %s: %w", path, err)
	}

	name := frontmatter.OptionalString(meta["name"])
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	description := frontmatter.OptionalString(meta["description"])
	if description == "" {
		description = "설명이 없어요."
	}

	return Spec{
		Name:            name,
		Description:     description,
		Prompt:          prompt,
		Tools:           frontmatter.NormalizeStringList(meta["tools"]),
		DisallowedTools: frontmatter.NormalizeStringList(meta["disallowedTools"]),
		Model:           normalizeModel(meta["model"]),
		PermissionMode:  normalizePermission(meta["permissionMode"]),
		MaxTurns:        normalizePositiveInt(meta["maxTurns"]),
		Skills:          frontmatter.NormalizeStringList(meta["skills"]),
		McpServers:      normalizeMcpServers(meta["mcpServers"]),
		Hooks:           normalizeHooks(meta["hooks"]),
		Memory:          frontmatter.OptionalString(meta["memory"]),
		SourcePath:      path,
	}, nil
}

// Discover parses every *.md file under the base paths. Later base paths
// override earlier ones when names collide, so the project directory wins
// over the global one.
func Discover(basePaths []string) ([]Spec, error) {
	order := []string{}
	found := map[string]Spec{}

	for _, base := range basePaths {
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			continue
		}
		matches, err := doublestar.Glob(filepath.Join(base, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", base, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			spec, err := ParseFile(match)
			if err != nil {
				return nil, err
			}
			if _, seen := found[spec.Name]; !seen {
				order = append(order, spec.Name)
			}
			found[spec.Name] = spec
		}
	}

	result := make([]Spec, 0, len(order))
	for _, name := range order {
		result = append(result, found[name])
	}
	return result, nil
}

// DefaultSearchPaths lists the global agent directory first and the
// project directory second.
func DefaultSearchPaths(workspaceRoot string) []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".claude", "agents"))
	}
	return append(paths, filepath.Join(workspaceRoot, ".claude", "agents"))
}

func normalizeModel(value any) string {
	if s := frontmatter.OptionalString(value); s != "" {
		return s
	}
	return "inherit"
}

func normalizePermission(value any) string {
	if s := frontmatter.OptionalString(value); s != "" {
		return s
	}
	return "default"
}

func normalizePositiveInt(value any) int {
	if n, ok := value.(int); ok && n > 0 {
		return n
	}
	return 0
}

// normalizeMcpServers accepts either plain server names or single-key
// mappings whose keys are the server names.
func normalizeMcpServers(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}

	servers := []string{}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				servers = append(servers, trimmed)
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for key := range v {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			servers = append(servers, keys...)
		}
	}
	return servers
}

func normalizeHooks(value any) map[string][]map[string]any {
	mapping, ok := value.(map[string]any)
	if !ok {
		return map[string][]map[string]any{}
	}

	normalized := map[string][]map[string]any{}
	for eventName, rawEntries := range mapping {
		entries, ok := rawEntries.([]any)
		if !ok {
			continue
		}
		eventEntries := []map[string]any{}
		for _, entry := range entries {
			if m, ok := entry.(map[string]any); ok {
				eventEntries = append(eventEntries, m)
			}
		}
		normalized[eventName] = eventEntries
	}
	return normalized
}
