package subagent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgent(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseFileFullFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "reviewer.md", `---
name: reviewer
description: 코드 리뷰 전담이에요.
tools: file_read, grep
disallowedTools:
  - shell
model: gpt-5
permissionMode: strict
maxTurns: 5
skills: [review]
mcpServers:
  - plain-server
  - mapped-server: {url: "http://localhost:9000"}
hooks:
  pre_turn:
    - command: echo hi
memory: always use English
---
You review code carefully.
`)

	spec, err := ParseFile(filepath.Join(dir, "reviewer.md"))
	require.NoError(t, err)

	assert.Equal(t, "reviewer", spec.Name)
	assert.Equal(t, "코드 리뷰 전담이에요.", spec.Description)
	assert.Equal(t, "You review code carefully.", spec.Prompt)
	assert.Equal(t, []string{"file_read", "grep"}, spec.Tools)
	assert.Equal(t, []string{"shell"}, spec.DisallowedTools)
	assert.Equal(t, "gpt-5", spec.Model)
	assert.Equal(t, "strict", spec.PermissionMode)
	assert.Equal(t, 5, spec.MaxTurns)
	assert.Equal(t, []string{"review"}, spec.Skills)
	assert.Equal(t, []string{"plain-server", "mapped-server"}, spec.McpServers)
	require.Len(t, spec.Hooks["pre_turn"], 1)
	assert.Equal(t, "echo hi", spec.Hooks["pre_turn"][0]["command"])
	assert.Equal(t, "always use English", spec.Memory)
}

func TestParseFileDefaults(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "helper.md", "Just a prompt, no front-matter.\n")

	spec, err := ParseFile(filepath.Join(dir, "helper.md"))
	require.NoError(t, err)

	assert.Equal(t, "helper", spec.Name)
	assert.Equal(t, "설명이 없어요.", spec.Description)
	assert.Equal(t, "Just a prompt, no front-matter.", spec.Prompt)
	assert.Equal(t, "inherit", spec.Model)
	assert.Equal(t, "default", spec.PermissionMode)
	assert.Zero(t, spec.MaxTurns)
	assert.Empty(t, spec.McpServers)
	assert.Empty(t, spec.Memory)
}

func TestParseFileRejectsNonPositiveMaxTurns(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "a.md", "---\nmaxTurns: -3\n---\nPrompt.")

	spec, err := ParseFile(filepath.Join(dir, "a.md"))
	require.NoError(t, err)
	assert.Zero(t, spec.MaxTurns)
}

func TestDiscoverLaterPathOverrides(t *testing.T) {
	globalDir := t.TempDir()
	projectDir := t.TempDir()
	writeAgent(t, globalDir, "reviewer.md", "---\nname: reviewer\nmodel: global-model\n---\nG.")
	writeAgent(t, projectDir, "reviewer.md", "---\nname: reviewer\nmodel: project-model\n---\nP.")

	specs, err := Discover([]string{globalDir, projectDir})
	require.NoError(t, err)

	require.Len(t, specs, 1)
	assert.Equal(t, "project-model", specs[0].Model)
}

func TestDiscoverSkipsMissingDirs(t *testing.T) {
	specs, err := Discover([]string{filepath.Join(t.TempDir(), "absent")})
	require.NoError(t, err)
	assert.Empty(t, specs)
}
