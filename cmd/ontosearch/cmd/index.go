package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ontosearch/internal/ui"
)

func newIndexCmd(a *app) *cobra.Command {
	var kb kbFlags
	var plain bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and persist the index of a knowledge base",
		Long: `Build the search index of a knowledge base and commit it to the index
directory (index.dir in the configuration).

Examples:
  ontosearch index --kb fruit.yaml
  ontosearch index --kb fruit.db --category display_name,identifier`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, a, kb, plain)
		},
	}
	kb.register(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output instead of the interactive display")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, kb kbFlags, plain bool) (err error) {
	monitor := ui.NewMonitor(ui.NewConfig(cmd.ErrOrStderr(),
		ui.WithForcePlain(plain),
		ui.WithNoColor(a.noColor)))
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = monitor.Stop() }()

	s, err := a.openSession(ctx, kb, monitor)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	start := time.Now()
	// An empty search only brings the index up to date.
	if _, err := s.manager.SearchSync(ctx, ""); err != nil {
		return err
	}
	if err := s.manager.Flush(ctx); err != nil {
		return err
	}
	_ = monitor.Stop()

	st := s.manager.Stats()
	var docs uint64
	for _, h := range st.Handles {
		if h.Collection == st.Collection {
			docs = h.Docs
		}
	}
	elapsed := time.Since(start).Round(time.Millisecond)
	a.logger.Info("index_command_complete",
		slog.String("collection", st.Collection),
		slog.Uint64("docs", docs),
		slog.Duration("elapsed", elapsed))

	where := a.cfg.IndexRoot()
	if where == "" {
		where = "memory"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d documents in %s (%s)\n",
		st.Collection, docs, elapsed, where)
	return err
}
