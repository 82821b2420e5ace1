package session

import (
	"strings"

	"github.com/opencode-ai/agentchat/pkg/types"
)

// DefaultTitle names a session nobody has titled yet.
const DefaultTitle = "New Chat"

// maxTitleRunes bounds titles derived from the first user message.
const maxTitleRunes = 40

// isDefaultTitle reports whether title is a placeholder rather than a real
// title.
func isDefaultTitle(title, fallback string) bool {
	title = strings.TrimSpace(title)
	return title == "" || title == fallback || title == DefaultTitle
}

// InferTitle picks a session title after a reply completes. An explicit
// title wins, then an existing non-default title, then the first user
// message cut to 40 characters, then fallback.
func InferTitle(explicit *string, existing string, messages []types.Message, fallback string) string {
	if fallback == "" {
		fallback = DefaultTitle
	}
	if explicit != nil {
		if t := strings.TrimSpace(*explicit); t != "" {
			return t
		}
	}
	if !isDefaultTitle(existing, fallback) {
		return existing
	}
	for _, m := range messages {
		if m.Sender != types.SenderUser {
			continue
		}
		if t := truncateTitle(m.Text); t != "" {
			return t
		}
	}
	return fallback
}

// truncateTitle collapses whitespace and keeps at most maxTitleRunes runes.
func truncateTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return strings.TrimSpace(string(runes))
}
