package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionListAll bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, most recent first",
	Args:    cobra.NoArgs,
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		s.renderer.Sessions(s.engine.Sessions.ListByRecency(sessionListAll), s.engine.Sessions.CurrentID())
		return nil
	}),
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session and make it current",
	Args:  cobra.NoArgs,
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		sess, err := s.engine.Chat.NewSession(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, sess.ID)
		return nil
	}),
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a session's messages (defaults to the current session)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		id := s.engine.Sessions.CurrentID()
		if len(args) > 0 {
			id = args[0]
		}
		sess, err := s.engine.Sessions.Load(id)
		if err != nil {
			return err
		}
		s.renderer.History(sess)
		return nil
	}),
}

var sessionSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Make a session current",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		_, err := s.engine.Chat.Switch(ctx, args[0])
		return err
	}),
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		_, err := s.engine.Sessions.Rename(ctx, args[0], args[1])
		return err
	}),
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Hide a session from the default listing",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		_, err := s.engine.Sessions.SetArchived(ctx, args[0], true)
		return err
	}),
}

var sessionUnarchiveCmd = &cobra.Command{
	Use:   "unarchive <id>",
	Short: "Restore an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		_, err := s.engine.Sessions.SetArchived(ctx, args[0], false)
		return err
	}),
}

var sessionMoveCmd = &cobra.Command{
	Use:   "move <id> <folder-id|none>",
	Short: "Move a session into a folder, or out of any folder",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		var folderID *string
		if args[1] != "none" {
			folderID = &args[1]
		}
		_, err := s.engine.Sessions.MoveToFolder(ctx, args[0], folderID)
		return err
	}),
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a session",
	Args:    cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		return s.engine.Chat.Delete(ctx, args[0])
	}),
}

func init() {
	sessionListCmd.Flags().BoolVar(&sessionListAll, "all", false, "Include archived sessions")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionSelectCmd)
	sessionCmd.AddCommand(sessionRenameCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
	sessionCmd.AddCommand(sessionUnarchiveCmd)
	sessionCmd.AddCommand(sessionMoveCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}
