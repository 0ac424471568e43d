// Package policy loads workspace policy artifacts and enforces the
// provider/model constraints they declare.
package policy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codial-dev/codial-core/pkg/skills"
)

const (
	missingFileSummary  = "파일이 없어요."
	emptyFileSummary    = "내용이 비어 있어요."
	noSkillFilesSummary = "스킬 파일이 없어요."
)

// Snapshot is an immutable view of the workspace policy at one point in
// time. Load builds a fresh one on every call; nothing is cached.
type Snapshot struct {
	RulesSummary        string
	AgentsSummary       string
	SkillsSummary       string
	RulesText           string
	AgentsText          string
	AvailableSkills     []string
	SystemMemorySummary string
}

type Loader struct {
	workspaceRoot string
}

func NewLoader(workspaceRoot string) *Loader {
	return &Loader{workspaceRoot: workspaceRoot}
}

// Load reads RULES.md and AGENTS.md from the workspace root, discovers
// available skills, and summarises the merged CLAUDE.md memory chain.
func (l *Loader) Load() (Snapshot, error) {
	rulesPath := filepath.Join(l.workspaceRoot, "RULES.md")
	agentsPath := filepath.Join(l.workspaceRoot, "AGENTS.md")

	discovered, err := skills.Discover(
		skills.DefaultSkillSearchPaths(l.workspaceRoot),
		skills.DefaultCommandSearchPaths(l.workspaceRoot),
	)
	if err != nil {
		return Snapshot{}, err
	}

	names := make([]string, 0, len(discovered))
	for _, skill := range discovered {
		names = append(names, skill.Name)
	}
	sort.Strings(names)

	memory := LoadMemories(l.workspaceRoot)

	return Snapshot{
		RulesSummary:        readHeadline(rulesPath),
		AgentsSummary:       readHeadline(agentsPath),
		SkillsSummary:       skillsSummary(names),
		RulesText:           readFullText(rulesPath),
		AgentsText:          readFullText(agentsPath),
		AvailableSkills:     names,
		SystemMemorySummary: memorySummary(memory),
	}, nil
}

// readHeadline returns the first non-empty line of the file, truncated to
// 200 characters.
func readHeadline(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return missingFileSummary
	}
	if headline, ok := firstNonEmptyLine(string(data)); ok {
		return headline
	}
	return emptyFileSummary
}

func readFullText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func skillsSummary(names []string) string {
	if len(names) == 0 {
		return noSkillFilesSummary
	}
	return strings.Join(names, ", ")
}

func memorySummary(memory MemorySnapshot) string {
	if len(memory.LoadedPaths) == 0 {
		return missingFileSummary
	}
	if headline, ok := firstNonEmptyLine(memory.MergedText); ok {
		return headline
	}
	return emptyFileSummary
}

func firstNonEmptyLine(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		runes := []rune(stripped)
		if len(runes) > 200 {
			return string(runes[:200]), true
		}
		return stripped, true
	}
	return "", false
}
