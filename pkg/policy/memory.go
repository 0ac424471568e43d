package policy

import (
	"os"
	"path/filepath"
	"strings"
)

// MemorySnapshot is the merged CLAUDE.md memory for a workspace.
type MemorySnapshot struct {
	LoadedPaths []string
	MergedText  string
}

// LoadMemories merges the user-level CLAUDE.md with every CLAUDE.md found
// while walking up from the workspace root. Unreadable files are skipped.
func LoadMemories(workspaceRoot string) MemorySnapshot {
	candidates := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = appendIfFile(candidates, filepath.Join(home, ".claude", "CLAUDE.md"))
	}

	current, err := filepath.Abs(workspaceRoot)
	if err != nil {
		current = workspaceRoot
	}
	for {
		candidates = appendIfFile(candidates, filepath.Join(current, "CLAUDE.md"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	loadedPaths := []string{}
	mergedParts := []string{}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		loadedPaths = append(loadedPaths, path)
		mergedParts = append(mergedParts, string(data))
	}

	return MemorySnapshot{
		LoadedPaths: loadedPaths,
		MergedText:  strings.Join(mergedParts, "\n\n"),
	}
}

func appendIfFile(paths []string, candidate string) []string {
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return paths
	}
	return append(paths, candidate)
}
