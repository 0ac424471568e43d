package tools

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// The hashline format tags every line with a short content hash so a
// model can anchor edits to content instead of line numbers:
//
//	1:a3| def hello():
//
// Hashes are computed over the stripped line, which makes anchors robust
// against indentation drift.

const lineHashLength = 2

// generateLineHash returns the short hex hash for one line of content.
func generateLineHash(content string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])[:lineHashLength]
}

// formatLinesWithHash renders lines in "lineno:hash| content" form.
// Numbering starts at start (1-indexed).
func formatLinesWithHash(lines []string, start int) []string {
	formatted := make([]string, 0, len(lines))
	for i, line := range lines {
		formatted = append(formatted, fmt.Sprintf("%d:%s| %s", start+i, generateLineHash(line), line))
	}
	return formatted
}

// buildHashToLineMap maps each hash to the 0-indexed lines carrying it.
// Collisions are expected with two hex characters, so values are slices.
func buildHashToLineMap(lines []string) map[string][]int {
	mapping := make(map[string][]int, len(lines))
	for index, line := range lines {
		hash := generateLineHash(line)
		mapping[hash] = append(mapping[hash], index)
	}
	return mapping
}

// resolveHashToIndex converts a hash into a 0-indexed line index. When the
// hash is ambiguous the candidate closest to hint wins; without a hint the
// first occurrence wins. A negative hint means no hint. The second return
// is false when the hash matches no line.
func resolveHashToIndex(hash string, hashMap map[string][]int, hint int) (int, bool) {
	indices := hashMap[hash]
	if len(indices) == 0 {
		return 0, false
	}
	if len(indices) == 1 || hint < 0 {
		return indices[0], true
	}
	best := indices[0]
	for _, candidate := range indices[1:] {
		if abs(candidate-hint) < abs(best-hint) {
			best = candidate
		}
	}
	return best, true
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
