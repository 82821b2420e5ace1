// Package commands provides the CLI commands for agentchat.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentchat/internal/app"
	"github.com/opencode-ai/agentchat/internal/config"
	"github.com/opencode-ai/agentchat/internal/logging"
	"github.com/opencode-ai/agentchat/pkg/types"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	agentID   string
	workDir   string
)

var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "agentchat - chat with webhook-backed assistants",
	Long: `agentchat talks to chat agents exposed as streaming HTTP webhooks.
Conversations are kept locally, grouped into folders and titled automatically.

Run 'agentchat chat' to start an interactive session, or 'agentchat serve'
to expose the same engine over a local HTTP API.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand, show help
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&agentID, "agent", "a", "", "Agent to use (defaults to the configured default agent)")
	rootCmd.PersistentFlags().StringVar(&workDir, "directory", "", "Directory to load project configuration from")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("agentchat %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	defer logging.Close()
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*types.Config, error) {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return nil, err
	}
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return config.Load(dir)
}

// initLogging configures the global logger. Flags win over the config file.
func initLogging(cfg *types.Config) {
	lc := logging.DefaultConfig()
	lc.Output = io.Discard
	if printLogs {
		lc.Output = os.Stderr
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lc.Level = logging.ParseLevel(level)
	lc.Pretty = cfg.Log.Pretty
	lc.LogToFile = cfg.Log.File
	lc.LogDir = config.GetPaths().LogPath()
	logging.Init(lc)
}

// openApp loads configuration, starts logging and builds the application
// with the engine selected by --agent.
func openApp(ctx context.Context) (*app.App, *app.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	initLogging(cfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := a.Engine(agentID)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, engine, nil
}
