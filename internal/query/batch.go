package query

import (
	"log/slog"

	"github.com/Aman-CERP/ontosearch/internal/index"
)

// BatchBuilder holds one builder per active category and routes every
// keyword to the builders it belongs to.
type BatchBuilder struct {
	builders []Builder
}

// NewBatchBuilder creates builders for cats in category order.
func NewBatchBuilder(cats index.CategorySet, resolver HitResolver, logger *slog.Logger) *BatchBuilder {
	b := &BatchBuilder{}
	for _, c := range cats.Categories() {
		b.builders = append(b.builders, NewBuilder(c, resolver, logger))
	}
	return b
}

// HandleKeyword implements InputHandler.
func (b *BatchBuilder) HandleKeyword(k Keyword) {
	for _, bl := range b.builders {
		if bl.IsBuilderFor(k) {
			bl.Add(k)
		}
	}
}

// HandleCompound implements InputHandler by handling each keyword of the
// flattened group in turn.
func (b *BatchBuilder) HandleCompound(c CompoundKeyword) {
	for _, k := range c.Flatten() {
		b.HandleKeyword(k)
	}
}

// Build returns the batch of queries, one per builder.
func (b *BatchBuilder) Build() SearchQueries {
	qs := make([]SearchQuery, len(b.builders))
	for i, bl := range b.builders {
		qs[i] = bl.Build()
	}
	return NewSearchQueries(qs...)
}

// Compile parses text and builds the query batch for cats.
func Compile(text string, cats index.CategorySet, resolver HitResolver, logger *slog.Logger) SearchQueries {
	b := NewBatchBuilder(cats, resolver, logger)
	Dispatch(text, b)
	return b.Build()
}

// Verify interface implementation
var _ InputHandler = (*BatchBuilder)(nil)
