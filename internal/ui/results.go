package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Aman-CERP/ontosearch/internal/query"
)

// ResultRenderer prints search results.
type ResultRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultRenderer creates a result renderer.
func NewResultRenderer(out io.Writer, noColor bool) *ResultRenderer {
	return &ResultRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints up to limit results. A limit of zero prints all.
func (r *ResultRenderer) Render(text string, results []query.Result, limit int) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Warning.Render(fmt.Sprintf("No matches for %q", text)))
		return
	}

	shown := results
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render(fmt.Sprintf("%d matches for %q", len(results), text)))
	for _, res := range shown {
		_, _ = fmt.Fprintf(r.out, "  %s  %s\n", res.Display, r.styles.Dim.Render(string(res.ItemID)))
		if res.Match != "" && res.Match != res.Display {
			_, _ = fmt.Fprintf(r.out, "    %s %s\n",
				r.styles.Label.Render(res.Field+":"), r.styles.Match.Render(res.Match))
		}
	}
	if len(shown) < len(results) {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Dim.Render(fmt.Sprintf("... %d more", len(results)-len(shown))))
	}
}

// RenderJSON prints the results as a JSON array.
func (r *ResultRenderer) RenderJSON(results []query.Result) error {
	if results == nil {
		results = []query.Result{}
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
