package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ontosearch/internal/item"
	"github.com/Aman-CERP/ontosearch/internal/query"
	"github.com/Aman-CERP/ontosearch/internal/ui"
)

const watchHelp = `Type a query to search. Commands:
  :add <id> <name>      add an item
  :rename <id> <name>   change an item's display name
  :rm <id>              remove an item
  :save                 write the knowledge base and commit the index
  :stats                show the search manager state
  :help                 show this help
  :quit                 exit (unsaved edits are discarded from the index)
`

func newWatchCmd(a *app) *cobra.Command {
	var kb kbFlags
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Search interactively while the knowledge base changes",
		Long: `Open a knowledge base and read queries from standard input, one per
line. Every line starts a new search; a search still running when the
next line arrives is abandoned and only the latest results are printed.

Edits made with :add, :rename and :rm update the index in place. Changes
to the file on disk are picked up automatically.

` + watchHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, a, kb, limit)
		},
	}
	kb.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results per query (default search.max_results)")

	return cmd
}

// console serializes writes of the input loop, result handlers and the
// file watcher.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *ui.ResultRenderer
	limit    int
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *console) results(text string, rs *query.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.Render(text, rs.Results(), c.limit)
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, kb kbFlags, limit int) (err error) {
	if limit <= 0 {
		limit = a.cfg.Search.MaxResults
	}
	con := &console{
		out:      cmd.OutOrStdout(),
		renderer: ui.NewResultRenderer(cmd.OutOrStdout(), a.noColor),
		limit:    limit,
	}

	s, err := a.openSession(ctx, kb, nil)
	if err != nil {
		return err
	}
	defer func() {
		if s.dirty() {
			con.printf("Unsaved edits discarded from the index.\n")
		}
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch, err := s.watch(watchCtx, func(n int, err error) {
		switch {
		case err != nil:
			con.printf("reload failed: %v\n", err)
		case n > 0:
			con.printf("reloaded %s: %d changes\n", s.path, n)
		}
	})
	if err != nil {
		a.logger.Warn("watch_unavailable")
		con.printf("File watching unavailable: %v\n", err)
	} else {
		defer stopWatch()
	}

	con.printf("%s", watchHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-watchCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return s.manager.Flush(ctx)
			}
			quit, err := watchCommand(ctx, s, con, strings.TrimSpace(line))
			if err != nil {
				con.printf("%v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// watchCommand runs one input line. It reports whether the loop should end.
func watchCommand(ctx context.Context, s *session, con *console, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		s.manager.Search(line, func(rs *query.ResultSet) {
			con.results(line, rs)
		})
		return false, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "q", "quit", "exit":
		return true, nil

	case "help":
		con.printf("%s", watchHelp)

	case "save":
		if err := s.save(ctx); err != nil {
			return false, err
		}
		con.printf("saved %s\n", s.path)

	case "stats":
		data, err := json.MarshalIndent(s.manager.Stats(), "", "  ")
		if err != nil {
			return false, err
		}
		con.printf("%s\n", data)

	case "add", "rename":
		id, display, _ := strings.Cut(rest, " ")
		if id == "" {
			return false, fmt.Errorf("usage: :%s <id> <name>", name)
		}
		it, exists := s.lookup(item.ID(id))
		if name == "add" && exists {
			return false, fmt.Errorf("item %s already exists", id)
		}
		if name == "rename" && !exists {
			return false, fmt.Errorf("no item %s", id)
		}
		it.ID = item.ID(id)
		it.DisplayName = strings.TrimSpace(display)
		change := item.Add(it)
		if exists {
			change = item.Modify(it)
		}
		s.apply(item.NewChangeSet(change))
		con.printf("%s %s\n", change.Kind, id)

	case "rm", "remove":
		if rest == "" {
			return false, fmt.Errorf("usage: :rm <id>")
		}
		if _, ok := s.lookup(item.ID(rest)); !ok {
			return false, fmt.Errorf("no item %s", rest)
		}
		s.apply(item.NewChangeSet(item.Remove(item.ID(rest))))
		con.printf("REMOVE %s\n", rest)

	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", name)
	}
	return false, nil
}
