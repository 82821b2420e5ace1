package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentchat/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session as markdown, JSON or YAML",
	Long: `Export a session (the current one by default).

Examples:
  agentchat export
  agentchat export 01J... --format yaml -o chat.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: withEngine(runExport),
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "Output format (markdown|json|yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
}

func runExport(ctx context.Context, s *sessionCtx, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	id := s.engine.Sessions.CurrentID()
	if len(args) > 0 {
		id = args[0]
	}
	sess, err := s.engine.Sessions.Load(id)
	if err != nil {
		return err
	}

	var w io.Writer = s.out
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, sess, format); err != nil {
		return fmt.Errorf("export %s: %w", sess.ID, err)
	}
	return nil
}
