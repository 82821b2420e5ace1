package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentchat/pkg/types"
)

func TestFindSession(t *testing.T) {
	sessions := []*types.Session{
		{ID: "01JAAAAAAAAAAAAAAAAAAAAAAA", Title: "Trip to Lisbon"},
		{ID: "01JBBBBBBBBBBBBBBBBBBBBBBB", Title: "Tax questions"},
		{ID: "01JBCCCCCCCCCCCCCCCCCCCCCC", Title: "Recipe ideas"},
	}

	tests := []struct {
		query string
		want  string
	}{
		{"01JBBBBBBBBBBBBBBBBBBBBBBB", "01JBBBBBBBBBBBBBBBBBBBBBBB"},
		{"01ja", "01JAAAAAAAAAAAAAAAAAAAAAAA"},
		{"lisbon", "01JAAAAAAAAAAAAAAAAAAAAAAA"},
		{"Tax questons", "01JBBBBBBBBBBBBBBBBBBBBBBB"},
		{"recipe idea", "01JBCCCCCCCCCCCCCCCCCCCCCC"},
	}
	for _, tt := range tests {
		got, ok := findSession(sessions, tt.query)
		require.True(t, ok, tt.query)
		assert.Equal(t, tt.want, got.ID, tt.query)
	}

	_, ok := findSession(sessions, "quantum chromodynamics")
	assert.False(t, ok)
	_, ok = findSession(sessions, "  ")
	assert.False(t, ok)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("a", ""))
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.InDelta(t, 0.75, similarity("abcd", "abce"), 0.001)
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "deep"), 0755))
	for _, name := range []string{"docs/a.md", "docs/deep/b.md", "docs/c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}

	got, err := expandPaths(filepath.Join(dir, "docs", "**", "*.md"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "docs", "a.md"),
		filepath.Join(dir, "docs", "deep", "b.md"),
	}, got)

	plain := filepath.Join(dir, "docs", "c.txt")
	got, err = expandPaths(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{plain}, got)

	_, err = expandPaths(filepath.Join(dir, "*.pdf"))
	assert.Error(t, err)
}
