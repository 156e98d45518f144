// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	backend    string
	dataDir    string
	provider   string
	model      string
	logLevel   string
}

// NewRootCommand builds the chatdesk command tree. Running it without a
// subcommand opens the TUI.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "chatdesk",
		Short: "Terminal chat client with persistent conversations",
		Long: `chatdesk keeps named conversations with an assistant, streams replies
token by token and saves everything locally.

Examples:
  chatdesk                        # open the terminal UI
  chatdesk send "hello there"     # one-shot message, reply on stdout
  chatdesk repl                   # line-oriented chat
  chatdesk list --search trip     # find conversations
  chatdesk export <id> -f md      # write a conversation to a file
  chatdesk serve                  # HTTP API with live events`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
	root.SetVersionTemplate(versionLine() + "\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default: ~/.chatdesk/config.toml)")
	pf.StringVar(&flags.backend, "backend", "", "storage backend: file, sqlite, memory")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory for saved conversations")
	pf.StringVarP(&flags.provider, "provider", "p", "", "reply generator: canned, ollama, openai")
	pf.StringVarP(&flags.model, "model", "m", "", "model name for ollama or openai")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newTUICommand(flags),
		newREPLCommand(flags),
		newSendCommand(flags),
		newListCommand(flags),
		newShowCommand(flags),
		newExportCommand(flags),
		newRenameCommand(flags),
		newDeleteCommand(flags),
		newBackupCommand(flags),
		newRestoreCommand(flags),
		newClearCommand(flags),
		newServeCommand(flags),
		newModelsCommand(flags),
		newConfigCommand(flags),
		newSchemaCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

// loadConfig reads the config file (explicit or discovered), then applies
// the command-line overrides, which win over files and environment.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.backend != "" {
		cfg.Storage.Backend = flags.backend
	}
	if flags.dataDir != "" {
		cfg.Storage.Dir = flags.dataDir
	}
	if flags.provider != "" {
		cfg.Generator.Provider = flags.provider
	}
	if flags.model != "" {
		cfg.Generator.Model = flags.model
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configPathFor returns the file a command should read or write.
func configPathFor(flags *globalFlags) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	if path := config.FindConfigFile(dir); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// withApp loads the configuration, opens an App for the duration of fn and
// closes it afterwards.
func withApp(cmd *cobra.Command, flags *globalFlags, opts AppOptions, fn func(*App) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if opts.LogWriter == nil && !opts.Interactive && cfg.Log.File == "" {
		opts.LogWriter = cmd.ErrOrStderr()
	}

	ctx := cmd.Context()
	app, err := NewApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func versionLine() string {
	return fmt.Sprintf("chatdesk %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionLine())
		},
	}
}
