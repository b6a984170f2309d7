// Package cmd provides the CLI commands for ontosearch.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ontosearch/internal/config"
	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/logging"
	"github.com/Aman-CERP/ontosearch/pkg/version"
)

// app holds state shared by all commands of one invocation.
type app struct {
	debug   bool
	dir     string
	noColor bool

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the ontosearch CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ontosearch",
		Short: "Incremental full-text search over a knowledge base",
		Long: `ontosearch indexes the items of a knowledge base (a YAML file or a
SQLite database) and searches them by display name, identifier and
annotation values.

The index is rebuilt when it is stale and updated in place as the
knowledge base changes. Only the latest search delivers results.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.teardown()
		},
	}
	cmd.SetVersionTemplate("ontosearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to ~/.ontosearch/logs/")
	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory holding .ontosearch.yaml")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and starts file logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.dir)
	if err != nil {
		return apperrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'ontosearch config show' to inspect the effective configuration.")
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.debug {
		level = "debug"
	}
	logger, cleanup, err := logging.SetupDefault(logging.MCPConfig(level))
	if err != nil {
		// Logging is best effort; commands still run.
		logger = slog.New(slog.DiscardHandler)
		cleanup = func() {}
	}
	a.logger = logger
	a.cleanup = cleanup
	a.logger.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))
	return nil
}

func (a *app) teardown() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

// Execute runs the root command and prints errors in CLI format.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, apperrors.FormatForCLI(err))
	}
	return err
}
