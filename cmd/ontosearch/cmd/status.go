package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted indexes",
		Long: `List the indexes committed under the index directory with their item
count, categories, last commit time and health.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := a.cfg.IndexRoot()
			if root == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Indexes are kept in memory (index.dir: memory); nothing is persisted.")
				return err
			}

			statuses, err := index.ListMarkers(root)
			if err != nil {
				return err
			}
			if jsonOut {
				return ui.NewStatusRenderer(cmd.OutOrStdout(), true).RenderJSON(statuses)
			}
			ui.NewStatusRenderer(cmd.OutOrStdout(), a.noColor).Render(root, statuses)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")

	return cmd
}
