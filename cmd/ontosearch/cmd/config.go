package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/ontosearch/internal/config"
	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/ui"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage ontosearch configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/ontosearch/config.yaml)
  3. Project config (.ontosearch.yaml)
  4. Environment variables (ONTOSEARCH_*)`,
		Example: `  # Create user config with the defaults
  ontosearch config init

  # Create a project config in the current directory
  ontosearch config init --project

  # Show effective configuration
  ontosearch config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				path = filepath.Join(a.dir, config.ProjectFile)
			}
			return runConfigInit(cmd, a, path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Write "+config.ProjectFile+" in the project directory instead of the user config")

	return cmd
}

func runConfigInit(cmd *cobra.Command, a *app, path string, force bool) error {
	styles := ui.GetStyles(a.noColor)
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !force {
		_, _ = fmt.Fprintf(out, "%s %s\n", styles.Warning.Render("Configuration already exists:"), path)
		_, _ = fmt.Fprintln(out, "Use --force to overwrite it with the defaults.")
		return nil
	}

	backup, err := config.Backup(path)
	if err != nil {
		return apperrors.ConfigError("failed to back up configuration", err)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return apperrors.ConfigError("failed to write configuration", err).WithDetail("path", path)
	}

	_, _ = fmt.Fprintf(out, "%s %s\n", styles.Success.Render("Created configuration:"), path)
	if backup != "" {
		_, _ = fmt.Fprintf(out, "%s %s\n", styles.Dim.Render("Backup:"), backup)
	}
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return apperrors.InternalError("failed to marshal configuration", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := config.GetUserConfigPath()
			if !config.UserConfigExists() {
				user += " (not found)"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n",
				user, filepath.Join(a.dir, config.ProjectFile))
			return err
		},
	}
}
