package mcp

import (
	"time"

	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/query"
	"github.com/Aman-CERP/ontosearch/internal/search"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"search text; words match anywhere in names, identifiers and annotations; property:text restricts a fragment to one annotation property"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query     string         `json:"query" jsonschema:"the query that was run"`
	Total     int            `json:"total" jsonschema:"number of matching items"`
	Truncated bool           `json:"truncated" jsonschema:"true when results were cut at the limit"`
	Results   []query.Result `json:"results" jsonschema:"matching items ordered by item id"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Search    search.Stats     `json:"search" jsonschema:"live state of the search manager"`
	IndexRoot string           `json:"index_root,omitempty" jsonschema:"directory holding persisted indexes; empty when indexes are in memory"`
	Persisted []PersistedIndex `json:"persisted" jsonschema:"persisted indexes and their health"`
}

// PersistedIndex describes one committed on-disk index.
type PersistedIndex struct {
	Collection  string   `json:"collection"`
	Generation  uint64   `json:"generation"`
	DocCount    uint64   `json:"doc_count"`
	Categories  []string `json:"categories"`
	CommittedAt string   `json:"committed_at" jsonschema:"RFC3339 commit time"`
	Healthy     bool     `json:"healthy"`
	Problem     string   `json:"problem,omitempty"`
}

func toPersistedIndex(s index.MarkerStatus) PersistedIndex {
	return PersistedIndex{
		Collection:  s.Collection,
		Generation:  s.Generation,
		DocCount:    s.DocCount,
		Categories:  s.Categories,
		CommittedAt: s.CommittedAt.Format(time.RFC3339),
		Healthy:     s.Healthy,
		Problem:     s.Problem,
	}
}

// Limits for the search tool.
const (
	defaultLimit = 20
	maxLimit     = 200
)

// clampLimit applies the default and the upper bound to a requested limit.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
