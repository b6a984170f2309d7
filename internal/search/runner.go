package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/query"
)

// DefaultPageSize is the number of hits fetched per page.
const DefaultPageSize = 100

// ErrInterrupted is returned when a newer search superseded the running one.
var ErrInterrupted = errors.New("search superseded by a newer request")

// Runner executes query batches page by page, checking after every page
// whether the search is still the latest one issued.
type Runner struct {
	pageSize int
	latest   func() uint64
	logger   *slog.Logger
}

// NewRunner creates a runner. latest returns the id of the most recently
// issued search.
func NewRunner(pageSize int, latest func() uint64, logger *slog.Logger) *Runner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pageSize: pageSize, latest: latest, logger: logger}
}

// Execute runs every query of the batch against reader and adds the
// resolved hits to sink. progress, if non-nil, receives non-decreasing
// percentages across the whole batch, ending at 100.
//
// When id stops being the latest search, Execute returns ErrInterrupted
// and the content of sink must be discarded. Hits that cannot be resolved
// are skipped.
func (r *Runner) Execute(ctx context.Context, id uint64, reader *index.Reader, queries query.SearchQueries, sink *query.ResultSet, progress func(int)) error {
	report := &percent{fn: progress, last: -1}
	report.set(0)

	if err := r.checkpoint(id); err != nil {
		return err
	}

	n := queries.Len()
	for i := 0; i < n; i++ {
		q := queries.At(i)
		if !q.IsEmpty() {
			if err := r.runOne(ctx, id, reader, q, sink, func(done, total uint64) {
				report.set((i*100 + int(done*100/total)) / n)
			}); err != nil {
				return err
			}
		}
		report.set((i + 1) * 100 / n)
	}

	if err := r.checkpoint(id); err != nil {
		return err
	}
	report.set(100)
	return nil
}

// runOne pages through the hits of one query.
func (r *Runner) runOne(ctx context.Context, id uint64, reader *index.Reader, q query.SearchQuery, sink *query.ResultSet, step func(done, total uint64)) error {
	for from := 0; ; from += r.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := bleve.NewSearchRequestOptions(q.Predicate(), r.pageSize, from, false)
		req.Fields = q.Fields()
		req.SortBy([]string{"-_score", "_id"})

		res, err := reader.Search(ctx, req)
		if err != nil {
			return err
		}

		for _, hit := range res.Hits {
			result, err := q.Resolver().Resolve(q.Category(), hit)
			if err != nil {
				r.logger.Debug("search_hit_skipped",
					slog.String("category", q.Category().String()),
					slog.String("doc", hit.ID),
					slog.String("error", err.Error()))
				continue
			}
			sink.Add(result)
		}

		if err := r.checkpoint(id); err != nil {
			return err
		}

		done := uint64(from + len(res.Hits))
		if res.Total > 0 {
			step(min(done, res.Total), res.Total)
		}
		if len(res.Hits) < r.pageSize || done >= res.Total {
			return nil
		}
	}
}

func (r *Runner) checkpoint(id uint64) error {
	if r.latest() != id {
		return ErrInterrupted
	}
	return nil
}

// percent forwards strictly increasing percentages.
type percent struct {
	fn   func(int)
	last int
}

func (p *percent) set(v int) {
	if p.fn == nil || v <= p.last {
		return
	}
	if v > 100 {
		v = 100
	}
	p.last = v
	p.fn(v)
}
