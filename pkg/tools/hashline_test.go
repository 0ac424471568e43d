package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLineHashStripInsensitive(t *testing.T) {
	assert.Equal(t, generateLineHash("x = 1"), generateLineHash("  x = 1  "))
	assert.Equal(t, generateLineHash("x = 1"), generateLineHash("\tx = 1"))
}

func TestGenerateLineHashDifferentContent(t *testing.T) {
	assert.NotEqual(t, generateLineHash("x = 1"), generateLineHash("x = 2"))
}

func TestGenerateLineHashLength(t *testing.T) {
	assert.Len(t, generateLineHash("def hello():"), 2)
	assert.Len(t, generateLineHash(""), 2)
}

func TestFormatLinesWithHash(t *testing.T) {
	formatted := formatLinesWithHash([]string{"def hello():", "    pass"}, 1)

	require.Len(t, formatted, 2)
	assert.Regexp(t, `^1:[0-9a-f]{2}\| def hello\(\):$`, formatted[0])
	assert.Regexp(t, `^2:[0-9a-f]{2}\|     pass$`, formatted[1])
}

func TestFormatLinesWithHashCustomStart(t *testing.T) {
	formatted := formatLinesWithHash([]string{"c", "d"}, 3)

	require.Len(t, formatted, 2)
	assert.Contains(t, formatted[0], "3:")
	assert.Contains(t, formatted[1], "4:")
}

func TestBuildHashToLineMap(t *testing.T) {
	mapping := buildHashToLineMap([]string{"a", "b", "a"})

	assert.Equal(t, []int{0, 2}, mapping[generateLineHash("a")])
	assert.Equal(t, []int{1}, mapping[generateLineHash("b")])
}

func TestResolveHashToIndex(t *testing.T) {
	mapping := buildHashToLineMap([]string{"x", "y", "x"})
	hashX := generateLineHash("x")

	// Unambiguous hash resolves regardless of hint.
	idx, found := resolveHashToIndex(generateLineHash("y"), mapping, -1)
	require.True(t, found)
	assert.Equal(t, 1, idx)

	// No hint picks the first occurrence.
	idx, found = resolveHashToIndex(hashX, mapping, -1)
	require.True(t, found)
	assert.Equal(t, 0, idx)

	// A hint near the end picks the closer occurrence.
	idx, found = resolveHashToIndex(hashX, mapping, 2)
	require.True(t, found)
	assert.Equal(t, 2, idx)

	_, found = resolveHashToIndex("zz", mapping, -1)
	assert.False(t, found)
}

func TestSplitKeepEnds(t *testing.T) {
	assert.Nil(t, splitKeepEnds(""))
	assert.Equal(t, []string{"a\n", "b\n"}, splitKeepEnds("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b"}, splitKeepEnds("a\nb"))
	assert.Equal(t, []string{"\n"}, splitKeepEnds("\n"))
}

func TestStripLineEnding(t *testing.T) {
	assert.Equal(t, "x", stripLineEnding("x\n"))
	assert.Equal(t, "x", stripLineEnding("x\r\n"))
	assert.Equal(t, "x  ", stripLineEnding("x  \n"))
	assert.Equal(t, "x", stripLineEnding("x"))
}
