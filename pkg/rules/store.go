// Package rules persists the user-maintained rule list in the workspace's
// CODIAL.md file.
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const rulesFilename = "CODIAL.md"

// ErrIndexOutOfRange is returned by Remove for a rule number outside the
// current 1-based list.
var ErrIndexOutOfRange = errors.New("index_out_of_range")

// Store reads and rewrites the rule list. Bullet lines ("- ") are the rules;
// every other line is presentation and regenerated on write.
type Store struct {
	workspaceRoot string
	path          string

	mu sync.Mutex
}

// NewStore builds a store rooted at the workspace directory.
func NewStore(workspaceRoot string) *Store {
	return &Store{
		workspaceRoot: workspaceRoot,
		path:          filepath.Join(workspaceRoot, rulesFilename),
	}
}

// List returns the current rules in file order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Add appends a rule and returns the updated list. Blank input is ignored.
func (s *Store) Add(rule string) ([]string, error) {
	normalized := strings.TrimSpace(rule)

	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := s.read()
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return rules, nil
	}

	rules = append(rules, normalized)
	if err := s.write(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Remove deletes the rule at the given 1-based index and returns the
// updated list.
func (s *Store) Remove(index int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := s.read()
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(rules) {
		return nil, ErrIndexOutOfRange
	}

	rules = append(rules[:index-1], rules[index:]...)
	if err := s.write(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) read() ([]string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var rules []string
	for _, line := range strings.Split(string(content), "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "- ") {
			rules = append(rules, strings.TrimSpace(stripped[2:]))
		}
	}
	if rules == nil {
		rules = []string{}
	}
	return rules, nil
}

func (s *Store) write(rules []string) error {
	if err := os.MkdirAll(s.workspaceRoot, 0o755); err != nil {
		return fmt.Errorf("failed to prepare workspace dir: %w", err)
	}

	lines := []string{"# " + rulesFilename, "", "## 규칙 목록", ""}
	for _, rule := range rules {
		lines = append(lines, "- "+rule)
	}
	lines = append(lines, "")

	if err := os.WriteFile(s.path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	return nil
}
