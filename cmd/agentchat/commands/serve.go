package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentchat/internal/app"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API",
	Long: `Start agentchat as a local server that exposes sessions, folders and
streaming replies of every configured agent over HTTP, with an SSE event feed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (defaults to server.port in config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)
	log := logging.Component("server")
	log.Info().Str("version", Version).Str("logFile", logging.GetLogFilePath()).Msg("starting agentchat server")

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Configure server
	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Server.Port
	if servePort != 0 {
		serverConfig.Port = servePort
	}
	if cfg.Server.CORS != nil {
		serverConfig.EnableCORS = *cfg.Server.CORS
	}

	srv := server.New(serverConfig, a)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", serverConfig.Port).Strs("agents", a.Agents()).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
	return nil
}
