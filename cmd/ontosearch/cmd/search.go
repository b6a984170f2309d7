package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	kb       kbFlags
	limit    int
	jsonOut  bool
	progress bool
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a knowledge base",
		Long: `Search the items of a knowledge base by display name, identifier and
annotation values. A stale index is rebuilt first.

Keywords are separated by spaces; all keywords must match. Quote a phrase
to keep it together. A keyword of the form property:text only matches
annotations with that property. Wildcards (*, ?) and regular expressions
(/.../) are supported.

Examples:
  ontosearch search --kb fruit.yaml apple
  ontosearch search --kb fruit.yaml "red apple" definition:pome
  ontosearch search --kb fruit.db 'app*' --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, a, strings.Join(args, " "), opts)
		},
	}
	opts.kb.register(cmd)
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.max_results)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show indexing and search progress on stderr")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, text string, opts searchOptions) (err error) {
	if strings.TrimSpace(text) == "" {
		return apperrors.New(apperrors.ErrCodeQueryEmpty, "query cannot be empty", nil)
	}
	timeout, err := a.cfg.SearchTimeout()
	if err != nil {
		return apperrors.ConfigError("invalid search.timeout", err)
	}
	limit := opts.limit
	if limit <= 0 {
		limit = a.cfg.Search.MaxResults
	}

	var monitor ui.Monitor
	if opts.progress {
		monitor = ui.NewPlainMonitor(ui.NewConfig(cmd.ErrOrStderr(), ui.WithNoColor(a.noColor)))
	}

	s, err := a.openSession(ctx, opts.kb, monitor)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rs, err := s.manager.SearchSync(searchCtx, text)
	if err != nil {
		if searchCtx.Err() == context.DeadlineExceeded {
			return apperrors.New(apperrors.ErrCodeSearchTimeout, "search timed out", err).
				WithSuggestion("Raise search.timeout or narrow the query.")
		}
		return err
	}

	results := rs.Results()
	if opts.jsonOut {
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		return ui.NewResultRenderer(cmd.OutOrStdout(), true).RenderJSON(results)
	}
	ui.NewResultRenderer(cmd.OutOrStdout(), a.noColor).Render(text, results, limit)
	return nil
}
