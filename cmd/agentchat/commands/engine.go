package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentchat/internal/app"
)

// sessionCtx is what one-shot management commands run against.
type sessionCtx struct {
	app      *app.App
	engine   *app.Engine
	renderer *Renderer
	out      io.Writer
}

// withEngine opens the application for the duration of a command.
func withEngine(fn func(ctx context.Context, s *sessionCtx, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, engine, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, &sessionCtx{
			app:      a,
			engine:   engine,
			renderer: NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), rendererOptions{}),
			out:      cmd.OutOrStdout(),
		}, args)
	}
}
