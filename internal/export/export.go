// Package export renders sessions for sharing outside the app.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/agentchat/pkg/types"
)

// Format selects an export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts a format name or common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "md"
	}
}

// Write encodes sess to w in the given format.
func Write(w io.Writer, sess *types.Session, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sess); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(sess))
		return err
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Markdown renders a session as a readable transcript.
func Markdown(sess *types.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", sess.Title)
	fmt.Fprintf(&sb, "- Session: `%s`\n", sess.ID)
	fmt.Fprintf(&sb, "- Agent: %s\n", sess.AgentID)
	fmt.Fprintf(&sb, "- Updated: %s\n", time.UnixMilli(sess.LastUpdated).UTC().Format(time.RFC3339))
	if sess.Archived {
		sb.WriteString("- Archived\n")
	}

	for _, m := range sess.Messages {
		who := "Assistant"
		if m.IsUser() {
			who = "User"
		}
		fmt.Fprintf(&sb, "\n## %s", who)
		if m.Timestamp != "" {
			fmt.Fprintf(&sb, " (%s)", m.Timestamp)
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(m.Text))
		sb.WriteString("\n")
	}
	return sb.String()
}
