package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/opencode-ai/agentchat/pkg/types"
)

// Renderer prints conversation progress to the terminal.
type Renderer struct {
	out     io.Writer
	err     io.Writer
	opts    rendererOptions
	printed string
}

type rendererOptions struct {
	NoColor bool
	JSON    bool
	Verbose bool
}

// NewRenderer creates a renderer writing to out, with diagnostics on errOut.
func NewRenderer(out, errOut io.Writer, opts rendererOptions) *Renderer {
	color.NoColor = color.NoColor || opts.NoColor
	return &Renderer{out: out, err: errOut, opts: opts}
}

func (r *Renderer) emit(kind string, fields map[string]any) {
	fields["type"] = kind
	b, _ := json.Marshal(fields)
	fmt.Fprintln(r.out, string(b))
}

// Banner announces the agent and session the REPL starts on.
func (r *Renderer) Banner(agentID, endpoint string, sess *types.Session) {
	if r.opts.JSON {
		return
	}
	fmt.Fprintln(r.err, color.New(color.FgHiBlack).Sprintf("Agent %s at %s", agentID, endpoint))
	fmt.Fprintln(r.err, color.New(color.FgHiBlack).Sprintf("Session %s (%s). Type /help for commands.", sess.Title, sess.ID))
}

// Help prints free-form text.
func (r *Renderer) Help(text string) {
	fmt.Fprintln(r.out, text)
}

// Notice prints a short status line.
func (r *Renderer) Notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.opts.JSON {
		r.emit("notice", map[string]any{"text": msg})
		return
	}
	fmt.Fprintln(r.out, color.New(color.FgHiBlack).Sprint(msg))
}

// Error prints an error line.
func (r *Renderer) Error(err error) {
	if r.opts.JSON {
		r.emit("error", map[string]any{"error": err.Error()})
		return
	}
	fmt.Fprintln(r.err, color.New(color.FgRed).Sprintf("error: %v", err))
}

// History replays the messages of a session.
func (r *Renderer) History(sess *types.Session) {
	for _, m := range sess.Messages {
		if m.IsUser() {
			r.User(m.Text)
		} else {
			r.Assistant(m.Text)
		}
	}
}

// User prints a user message.
func (r *Renderer) User(input string) {
	if r.opts.JSON {
		r.emit("user", map[string]any{"text": input})
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgCyan, color.Bold).Sprint("you ›"), input)
}

// Assistant prints a complete assistant message.
func (r *Renderer) Assistant(message string) {
	if r.opts.JSON {
		r.emit("assistant", map[string]any{"text": message})
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgGreen, color.Bold).Sprint("assistant ›"), message)
}

// Delta prints the part of the accumulated reply not shown yet. When the
// reply was rewritten rather than extended, the line is started over.
func (r *Renderer) Delta(accumulated string) {
	if r.opts.JSON {
		r.emit("delta", map[string]any{"text": accumulated})
		return
	}
	if r.printed == "" {
		fmt.Fprint(r.out, color.New(color.FgGreen, color.Bold).Sprint("assistant › "))
	}
	if strings.HasPrefix(accumulated, r.printed) {
		fmt.Fprint(r.out, accumulated[len(r.printed):])
	} else {
		fmt.Fprintf(r.out, "\r%s %s", color.New(color.FgGreen, color.Bold).Sprint("assistant ›"), accumulated)
	}
	r.printed = accumulated
}

// Reply finishes a streamed reply. A reply that never streamed, such as a
// fallback text or the connection error notice, is printed whole.
func (r *Renderer) Reply(msg types.Message, failed bool) {
	streamed := r.printed
	r.printed = ""
	if r.opts.JSON {
		r.emit("reply", map[string]any{"text": msg.Text, "failed": failed})
		return
	}
	switch {
	case failed:
		if streamed != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("assistant ›"), msg.Text)
	case streamed == msg.Text:
		fmt.Fprintln(r.out)
	default:
		if streamed != "" {
			fmt.Fprintln(r.out)
		}
		r.Assistant(msg.Text)
	}
}

// Interrupted ends a reply cut short by the user.
func (r *Renderer) Interrupted() {
	if r.printed != "" && !r.opts.JSON {
		fmt.Fprintln(r.out)
	}
	r.printed = ""
	r.Notice("(cancelled)")
}

// Sessions lists sessions, marking the current one.
func (r *Renderer) Sessions(sessions []*types.Session, currentID string) {
	if r.opts.JSON {
		b, _ := json.Marshal(sessions)
		fmt.Fprintln(r.out, string(b))
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, "No sessions.")
		return
	}
	for i, s := range sessions {
		marker := " "
		if s.ID == currentID {
			marker = "*"
		}
		flags := ""
		if s.Archived {
			flags += " [archived]"
		}
		if s.FolderID != nil {
			flags += " [folder " + *s.FolderID + "]"
		}
		fmt.Fprintf(r.out, "%s %2d  %-40s  %s  %s%s\n",
			marker, i+1, s.Title,
			color.New(color.FgHiBlack).Sprint(s.ID),
			time.UnixMilli(s.LastUpdated).Local().Format("2006-01-02 15:04"),
			flags)
	}
}

// Folders lists folders.
func (r *Renderer) Folders(folders []types.Folder) {
	if r.opts.JSON {
		b, _ := json.Marshal(folders)
		fmt.Fprintln(r.out, string(b))
		return
	}
	if len(folders) == 0 {
		fmt.Fprintln(r.out, "No folders.")
		return
	}
	for _, f := range folders {
		fmt.Fprintf(r.out, "  %-30s  %s\n", f.Name, color.New(color.FgHiBlack).Sprint(f.ID))
	}
}

// Trace prints diagnostics in verbose mode.
func (r *Renderer) Trace(msg string, details map[string]any) {
	if !r.opts.Verbose {
		return
	}
	if details != nil {
		fmt.Fprintln(r.err, color.New(color.FgHiBlack).Sprintf("[trace] %s %v", msg, details))
	} else {
		fmt.Fprintln(r.err, color.New(color.FgHiBlack).Sprintf("[trace] %s", msg))
	}
}
