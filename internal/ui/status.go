package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// StatusRenderer displays the persisted indexes under an index root.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints one block per index.
func (r *StatusRenderer) Render(root string, statuses []index.MarkerStatus) {
	_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Header.Render("Indexes in "+root))
	if len(statuses) == 0 {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Dim.Render("none"))
		return
	}

	for _, s := range statuses {
		_, _ = fmt.Fprintln(r.out)
		health := r.styles.Success.Render("healthy")
		if !s.Healthy {
			health = r.styles.Error.Render("unhealthy: " + s.Problem)
		}
		_, _ = fmt.Fprintf(r.out, "  %s  %s\n", s.Collection, health)
		_, _ = fmt.Fprintf(r.out, "    %s %d\n", r.styles.Label.Render("Documents: "), s.DocCount)
		_, _ = fmt.Fprintf(r.out, "    %s %d\n", r.styles.Label.Render("Generation:"), s.Generation)
		_, _ = fmt.Fprintf(r.out, "    %s %s\n", r.styles.Label.Render("Categories:"), strings.Join(s.Categories, ", "))
		if !s.CommittedAt.IsZero() {
			_, _ = fmt.Fprintf(r.out, "    %s %s\n", r.styles.Label.Render("Committed: "), formatTime(s.CommittedAt))
		}
	}
}

// RenderJSON prints the statuses as JSON.
func (r *StatusRenderer) RenderJSON(statuses []index.MarkerStatus) error {
	if statuses == nil {
		statuses = []index.MarkerStatus{}
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(statuses)
}

// formatTime formats a timestamp relative to now.
func formatTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
