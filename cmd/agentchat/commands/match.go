package commands

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/opencode-ai/agentchat/pkg/types"
)

// minTitleSimilarity is the lowest score /switch accepts for a title match.
const minTitleSimilarity = 0.5

// findSession resolves a session reference: an id, an id prefix, or a
// title close enough to the query.
func findSession(sessions []*types.Session, query string) (*types.Session, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}
	for _, s := range sessions {
		if s.ID == query {
			return s, true
		}
	}
	var prefixed []*types.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, strings.ToUpper(query)) {
			prefixed = append(prefixed, s)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], true
	}

	var best *types.Session
	bestScore := 0.0
	q := strings.ToLower(query)
	for _, s := range sessions {
		title := strings.ToLower(s.Title)
		score := similarity(q, title)
		if strings.Contains(title, q) {
			score = max(score, 0.9)
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	if bestScore < minTitleSimilarity {
		return nil, false
	}
	return best, true
}

// similarity is the normalized Levenshtein similarity of a and b.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(dist)/float64(maxLen)
}

// expandPaths expands a glob such as docs/**/*.md. Plain paths are returned
// unchanged.
func expandPaths(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %s", pattern)
	}
	return matches, nil
}
