package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage session folders",
}

var folderListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List folders",
	Args:    cobra.NoArgs,
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		s.renderer.Folders(s.engine.Folders.List())
		return nil
	}),
}

var folderCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		f, err := s.engine.Folders.Create(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, f.ID)
		return nil
	}),
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		_, err := s.engine.Folders.Rename(ctx, args[0], args[1])
		return err
	}),
}

var folderDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a folder; its sessions are kept",
	Args:    cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, s *sessionCtx, args []string) error {
		return s.engine.Folders.Delete(ctx, args[0])
	}),
}

func init() {
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderCreateCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderDeleteCmd)
}
