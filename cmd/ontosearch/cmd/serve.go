package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ontosearch/internal/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var kb kbFlags
	var transport string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server for AI assistants",
		Long: `Start a Model Context Protocol server exposing the knowledge base to
AI assistants through the search and index_status tools.

The knowledge base file is watched; edits on disk update the index in
place. Logs go to ~/.ontosearch/logs/ since stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, kb, transport, noWatch)
		},
	}
	kb.register(cmd)
	cmd.Flags().StringVar(&transport, "transport", "", "Transport: stdio (default server.transport)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the knowledge base for changes")

	return cmd
}

func runServe(ctx context.Context, a *app, kb kbFlags, transport string, noWatch bool) (err error) {
	if transport == "" {
		transport = a.cfg.Server.Transport
	}

	s, err := a.openSession(ctx, kb, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !noWatch {
		stop, werr := s.watch(ctx, nil)
		if werr != nil {
			a.logger.Warn("serve_watch_unavailable", slog.String("error", werr.Error()))
		} else {
			defer stop()
		}
	}

	srv, err := mcp.NewServer(s.manager, a.cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, transport)
}
