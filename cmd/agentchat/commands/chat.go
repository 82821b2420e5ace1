package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentchat/internal/app"
	"github.com/opencode-ai/agentchat/internal/chat"
	"github.com/opencode-ai/agentchat/internal/event"
	"github.com/opencode-ai/agentchat/pkg/types"
)

var (
	chatSession string
	chatNew     bool
	chatFiles   []string
	chatJSON    bool
	chatNoColor bool
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Chat with an agent",
	Long: `Chat with an agent. With a message, sends it on the current session,
prints the reply and exits. Without one, starts an interactive session.

Examples:
  agentchat chat
  agentchat chat "What's on my calendar today?"
  agentchat chat --new --file notes.txt "Summarize these notes"
  agentchat chat --agent support --session 01J...`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session ID to continue")
	chatCmd.Flags().BoolVarP(&chatNew, "new", "n", false, "Start a new session")
	chatCmd.Flags().StringArrayVarP(&chatFiles, "file", "f", nil, "File(s) to attach to the message")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "Print output as JSON lines")
	chatCmd.Flags().BoolVar(&chatNoColor, "no-color", false, "Disable colored output")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Print request diagnostics")
}

// chatREPL is the state of one terminal chat.
type chatREPL struct {
	app      *app.App
	engine   *app.Engine
	renderer *Renderer

	// sending is the session whose reply is being streamed.
	sending string
	// listed is the last session listing, for /switch <n>.
	listed  []*types.Session
	pending []chat.Attachment
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, engine, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r := &chatREPL{
		app:    a,
		engine: engine,
		renderer: NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), rendererOptions{
			NoColor: chatNoColor,
			JSON:    chatJSON,
			Verbose: chatVerbose,
		}),
	}
	unsub := a.Bus.Subscribe(event.MessageDelta, r.onDelta)
	defer unsub()

	switch {
	case chatNew:
		if _, err := engine.Chat.NewSession(ctx); err != nil {
			return err
		}
	case chatSession != "":
		if _, err := engine.Chat.Switch(ctx, chatSession); err != nil {
			return err
		}
	}

	for _, pattern := range chatFiles {
		atts, err := readAttachments(pattern)
		if err != nil {
			return err
		}
		r.pending = append(r.pending, atts...)
	}

	if len(args) > 0 {
		res, err := r.send(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if res.Failed {
			return res.Err
		}
		return nil
	}

	r.renderer.Banner(engine.AgentID, engine.Endpoint, engine.Sessions.Current())
	r.renderer.History(engine.Sessions.Current())
	return r.run(ctx, cmd.InOrStdin())
}

func (r *chatREPL) onDelta(e event.Event) {
	data, ok := e.Data.(event.MessageDeltaData)
	if !ok || data.AgentID != r.engine.AgentID || data.SessionID != r.sending {
		return
	}
	r.renderer.Delta(data.Text)
}

func (r *chatREPL) prompt() string {
	sess := r.engine.Sessions.Current()
	if sess == nil {
		return "> "
	}
	title := []rune(sess.Title)
	if len(title) > 20 {
		title = append(title[:19], '…')
	}
	return fmt.Sprintf("%s> ", string(title))
}

func (r *chatREPL) readMultiline(reader *bufio.Reader) (string, error) {
	var lines []string
	for {
		prompt := r.prompt()
		if len(lines) > 0 {
			prompt = "... "
		}
		if !r.renderer.opts.JSON {
			fmt.Fprint(r.renderer.out, prompt)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			// Input may end without a newline.
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				lines = append(lines, strings.TrimSuffix(line, "\\"))
			}
			if len(lines) == 0 {
				return "", err
			}
			return strings.Join(lines, "\n"), nil
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasSuffix(line, "\\") {
			lines = append(lines, strings.TrimSuffix(line, "\\"))
			continue
		}
		lines = append(lines, line)
		return strings.Join(lines, "\n"), nil
	}
}

func (r *chatREPL) run(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)
	for {
		line, err := r.readMultiline(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			exit, err := r.command(ctx, parseCommand(trimmed))
			if err != nil {
				r.renderer.Error(err)
			}
			if exit {
				return nil
			}
			continue
		}

		if _, err := r.send(ctx, line); err != nil && !errors.Is(err, chat.ErrCancelled) {
			r.renderer.Error(err)
		}
	}
}

// send submits input on the current session. Ctrl-C cancels the request
// without leaving the REPL.
func (r *chatREPL) send(ctx context.Context, input string) (*chat.Result, error) {
	sess := r.engine.Sessions.Current()
	if sess == nil {
		return nil, errors.New("no current session")
	}
	attachments := r.pending
	r.pending = nil

	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.sending = sess.ID
	defer func() { r.sending = "" }()

	if r.renderer.opts.JSON {
		r.renderer.User(input)
	}
	res, err := r.engine.Chat.Send(sendCtx, sess.ID, input, attachments)
	if err != nil {
		if errors.Is(err, chat.ErrCancelled) {
			r.renderer.Interrupted()
		}
		return nil, err
	}
	r.renderer.Trace("reply", map[string]any{"frames": res.Frames, "mode": res.Mode, "failed": res.Failed})
	if res.Err != nil {
		r.renderer.Trace("backend error", map[string]any{"error": res.Err.Error()})
	}
	r.renderer.Reply(res.Message, res.Failed)
	return res, nil
}

// command runs a slash command and reports whether the REPL should exit.
func (r *chatREPL) command(ctx context.Context, cmd commandResult) (bool, error) {
	engine := r.engine
	current := engine.Sessions.CurrentID()

	switch cmd.Type {
	case "exit":
		return true, nil

	case "help":
		r.renderer.Help(helpText)

	case "new":
		sess, err := engine.Chat.NewSession(ctx)
		if err != nil {
			return false, err
		}
		r.renderer.Notice("Started %s", sess.ID)
		r.renderer.History(sess)

	case "sessions":
		all := len(cmd.Args) > 0 && cmd.Args[0] == "all"
		r.listed = engine.Sessions.ListByRecency(all)
		r.renderer.Sessions(r.listed, current)

	case "switch":
		if cmd.Val == "" {
			return false, errors.New("usage: /switch <n|id|title>")
		}
		var id string
		if n, err := strconv.Atoi(cmd.Val); err == nil {
			if n < 1 || n > len(r.listed) {
				return false, fmt.Errorf("no session #%d; run /sessions first", n)
			}
			id = r.listed[n-1].ID
		} else {
			match, ok := findSession(engine.Sessions.ListByRecency(true), cmd.Val)
			if !ok {
				return false, fmt.Errorf("no session matches %q", cmd.Val)
			}
			id = match.ID
		}
		sess, err := engine.Chat.Switch(ctx, id)
		if err != nil {
			return false, err
		}
		r.renderer.Notice("Switched to %s", sess.Title)
		r.renderer.History(sess)

	case "rename":
		if cmd.Val == "" {
			return false, errors.New("usage: /rename <title>")
		}
		sess, err := engine.Sessions.Rename(ctx, current, cmd.Val)
		if err != nil {
			return false, err
		}
		r.renderer.Notice("Renamed to %s", sess.Title)

	case "archive", "unarchive":
		if _, err := engine.Sessions.SetArchived(ctx, current, cmd.Type == "archive"); err != nil {
			return false, err
		}
		r.renderer.Notice("Session %sd", cmd.Type)

	case "delete":
		if err := engine.Chat.Delete(ctx, current); err != nil {
			return false, err
		}
		r.renderer.Notice("Deleted; now on %s", engine.Sessions.Current().Title)

	case "memory":
		if len(cmd.Args) > 0 {
			v, ok := parseToggle(cmd.Args[0])
			if !ok {
				return false, errors.New("usage: /memory [on|off]")
			}
			if err := engine.Sessions.SetUseMemory(ctx, v); err != nil {
				return false, err
			}
		}
		prefs, err := engine.Sessions.Prefs(ctx)
		if err != nil {
			return false, err
		}
		r.renderer.Notice("Memory is %s", onOff(prefs.UseMemory))

	case "folder":
		return false, r.folderCommand(ctx, cmd)

	case "attach":
		if cmd.Val == "" {
			return false, errors.New("usage: /attach <path>")
		}
		atts, err := readAttachments(cmd.Val)
		if err != nil {
			return false, err
		}
		for _, att := range atts {
			r.pending = append(r.pending, att)
			r.renderer.Notice("Attached %s (%d bytes)", att.Name, len(att.Data))
		}

	default:
		r.renderer.Help(fmt.Sprintf("Unknown command: %s\n%s", cmd.Val, helpText))
	}
	return false, nil
}

func (r *chatREPL) folderCommand(ctx context.Context, cmd commandResult) error {
	engine := r.engine
	if len(cmd.Args) == 0 {
		r.renderer.Folders(engine.Folders.List())
		return nil
	}
	arg := strings.TrimSpace(strings.TrimPrefix(cmd.Val, cmd.Args[0]))
	switch cmd.Args[0] {
	case "new", "create":
		f, err := engine.Folders.Create(ctx, arg)
		if err != nil {
			return err
		}
		r.renderer.Notice("Created folder %s (%s)", f.Name, f.ID)
	case "move":
		var folderID *string
		if arg != "" && arg != "none" {
			folderID = &arg
		}
		if _, err := engine.Sessions.MoveToFolder(ctx, engine.Sessions.CurrentID(), folderID); err != nil {
			return err
		}
		r.renderer.Notice("Moved")
	default:
		return errors.New("usage: /folder [new <name> | move <id|none>]")
	}
	return nil
}

// readAttachments loads every file matching pattern.
func readAttachments(pattern string) ([]chat.Attachment, error) {
	paths, err := expandPaths(pattern)
	if err != nil {
		return nil, err
	}
	atts := make([]chat.Attachment, 0, len(paths))
	for _, path := range paths {
		att, err := readAttachment(path)
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	return atts, nil
}

// readAttachment loads a file to send with a message.
func readAttachment(path string) (chat.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	return chat.Attachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
