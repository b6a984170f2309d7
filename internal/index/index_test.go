package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/item"
)

func fruit() []item.Item {
	return []item.Item{
		{ID: "ex:A", DisplayName: "Apple", Annotations: []item.Annotation{
			{Property: "definition", Value: "A pome fruit"},
			{Property: "comment", Value: "grows on trees"},
		}},
		{ID: "ex:B", DisplayName: "Banana"},
	}
}

func testIndexer() *Indexer {
	return NewIndexer(Config{
		BatchSize: 1,
		LockRetry: apperrors.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	})
}

// matching returns the sorted item ids whose field contains text.
func matching(t *testing.T, r *Reader, field, text string) []string {
	t.Helper()
	q := bleve.NewWildcardQuery("*" + text + "*")
	q.SetField(field)
	req := bleve.NewSearchRequestOptions(q, 100, 0, false)
	req.Fields = []string{FieldItemID}

	res, err := r.Search(context.Background(), req)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, hit := range res.Hits {
		if id, ok := hit.Fields[FieldItemID].(string); ok {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func buildMemory(t *testing.T, ix *Indexer, items []item.Item) *Handle {
	t.Helper()
	h := NewHandle("fruit", "")
	require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(), items, nil))
	require.Equal(t, StateReady, h.State())
	return h
}

func TestRebuild_IndexesEntitiesAndAnnotations(t *testing.T) {
	// Given: an indexer and two items
	ix := testIndexer()

	// When: rebuilding an in-memory index
	h := buildMemory(t, ix, fruit())
	r, err := ix.Reader(h)
	require.NoError(t, err)

	// Then: display names, identifiers and annotations are searchable
	assert.Equal(t, []string{"ex:B"}, matching(t, r, FieldDisplayName, "an"))
	assert.Equal(t, []string{"ex:A"}, matching(t, r, FieldDisplayName, "apple"))
	assert.Equal(t, []string{"ex:A"}, matching(t, r, FieldAnnotationValue, "pome"))

	// And: one entity document per item plus one per annotation
	assert.Equal(t, uint64(4), h.DocCount())
	assert.Equal(t, uint64(1), r.Generation())
}

func TestRebuild_ReportsMonotoneProgressEndingAt100(t *testing.T) {
	ix := testIndexer()
	h := NewHandle("fruit", "")

	var got []int
	require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(), fruit(), func(p int) {
		got = append(got, p)
	}))

	require.NotEmpty(t, got)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 100, got[len(got)-1])
	assert.True(t, sort.IntsAreSorted(got))
}

func TestRebuild_EmptyCollection(t *testing.T) {
	ix := testIndexer()
	h := NewHandle("empty", "")

	var got []int
	require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(), nil, func(p int) { got = append(got, p) }))

	assert.Equal(t, []int{0, 100}, got)
	assert.Equal(t, uint64(0), h.DocCount())
}

func TestRebuild_WritesOnlyActiveCategoryFields(t *testing.T) {
	// Given: only the display name category is active
	ix := testIndexer()
	h := NewHandle("fruit", "")
	require.NoError(t, ix.Rebuild(context.Background(), h, NewCategorySet(CategoryDisplayName), fruit(), nil))
	r, err := ix.Reader(h)
	require.NoError(t, err)

	// Then: identifiers and annotations are not indexed
	assert.Equal(t, []string{"ex:A"}, matching(t, r, FieldDisplayName, "apple"))
	assert.Empty(t, matching(t, r, FieldIdentifier, "ex"))
	assert.Empty(t, matching(t, r, FieldAnnotationValue, "pome"))
	assert.Equal(t, uint64(2), h.DocCount())
}

func TestRebuild_ReplacesPreviousContent(t *testing.T) {
	ix := testIndexer()
	h := buildMemory(t, ix, fruit())
	old, err := ix.Reader(h)
	require.NoError(t, err)

	// When: rebuilding with different content
	require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(),
		[]item.Item{{ID: "ex:C", DisplayName: "Cherry"}}, nil))

	// Then: only the new content is visible
	r, err := ix.Reader(h)
	require.NoError(t, err)
	assert.Empty(t, matching(t, r, FieldDisplayName, "apple"))
	assert.Equal(t, []string{"ex:C"}, matching(t, r, FieldDisplayName, "cherry"))

	// And: the superseded reader refuses to search
	_, err = old.Search(context.Background(), bleve.NewSearchRequest(bleve.NewMatchAllQuery()))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRebuild_AnnotationDocumentsDoNotShadowItems(t *testing.T) {
	// Given: an item whose id looks like another item's annotation slot
	ix := testIndexer()
	h := buildMemory(t, ix, []item.Item{
		{ID: "x", DisplayName: "Ex", Annotations: []item.Annotation{{Property: "note", Value: "hello"}}},
		{ID: "x#0", DisplayName: "Zero"},
	})
	r, err := ix.Reader(h)
	require.NoError(t, err)

	// Then: both entities and the annotation are indexed
	assert.Equal(t, uint64(3), h.DocCount())
	assert.Equal(t, []string{"x#0"}, matching(t, r, FieldDisplayName, "zero"))
	assert.Equal(t, []string{"x"}, matching(t, r, FieldAnnotationValue, "hello"))

	// When: the annotated item is removed
	_, err = ix.Apply(context.Background(), h, item.NewChangeSet(item.Remove("x")))
	require.NoError(t, err)

	// Then: the other item survives
	r, err = ix.Reader(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"x#0"}, matching(t, r, FieldDisplayName, "zero"))
	assert.Equal(t, uint64(1), h.DocCount())
}

func TestRebuild_FailureKeepsPreviousIndex(t *testing.T) {
	tests := []struct {
		name string
		root func(t *testing.T) string
	}{
		{"in memory", func(*testing.T) string { return "" }},
		{"on disk", func(t *testing.T) string { return t.TempDir() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := testIndexer()
			root := tt.root(t)

			// Given: a Ready index
			h := NewHandle("fruit", root)
			require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(), fruit(), nil))
			gen := h.Generation()

			// When: a rebuild is cancelled before it completes
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := ix.Rebuild(ctx, h, AllCategories(), []item.Item{{ID: "ex:C", DisplayName: "Cherry"}}, nil)
			require.ErrorIs(t, err, context.Canceled)

			// Then: the previous index is still Ready and searchable
			assert.Equal(t, StateReady, h.State())
			assert.Equal(t, gen, h.Generation())
			r, err := ix.Reader(h)
			require.NoError(t, err)
			assert.Equal(t, []string{"ex:A"}, matching(t, r, FieldDisplayName, "apple"))
			assert.Empty(t, matching(t, r, FieldDisplayName, "cherry"))
			if root != "" {
				assert.DirExists(t, h.Dir())
				assert.NoDirExists(t, StagingDir(root, "fruit"))
			}

			// And: a later rebuild replaces it
			require.NoError(t, ix.Rebuild(context.Background(), h, AllCategories(),
				[]item.Item{{ID: "ex:C", DisplayName: "Cherry"}}, nil))
			r, err = ix.Reader(h)
			require.NoError(t, err)
			assert.Equal(t, []string{"ex:C"}, matching(t, r, FieldDisplayName, "cherry"))
			assert.Empty(t, matching(t, r, FieldDisplayName, "apple"))
			require.NoError(t, ix.Close(h))
		})
	}
}

func TestApply_AddRemoveModify(t *testing.T) {
	ctx := context.Background()
	ix := testIndexer()
	h := buildMemory(t, ix, fruit())

	// When: adding an item
	changed, err := ix.Apply(ctx, h, item.NewChangeSet(item.Add(item.Item{ID: "ex:F", DisplayName: "Foo"})))
	require.NoError(t, err)
	assert.True(t, changed)
	r, err := ix.Reader(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"ex:F"}, matching(t, r, FieldDisplayName, "foo"))

	// When: removing it again
	changed, err = ix.Apply(ctx, h, item.NewChangeSet(item.Remove("ex:F")))
	require.NoError(t, err)
	assert.True(t, changed)
	r, err = ix.Reader(h)
	require.NoError(t, err)
	assert.Empty(t, matching(t, r, FieldDisplayName, "foo"))

	// When: renaming Apple and dropping its annotations
	changed, err = ix.Apply(ctx, h, item.NewChangeSet(item.Modify(item.Item{ID: "ex:A", DisplayName: "Apricot"})))
	require.NoError(t, err)
	assert.True(t, changed)

	// Then: the old name and annotations are gone
	r, err = ix.Reader(h)
	require.NoError(t, err)
	assert.Empty(t, matching(t, r, FieldDisplayName, "apple"))
	assert.Equal(t, []string{"ex:A"}, matching(t, r, FieldDisplayName, "apri"))
	assert.Empty(t, matching(t, r, FieldAnnotationValue, "pome"))
	assert.Equal(t, uint64(2), h.DocCount())
}

func TestApply_NoOpChangeSets(t *testing.T) {
	ctx := context.Background()
	ix := testIndexer()
	h := buildMemory(t, ix, fruit())
	gen := h.Generation()

	// When: applying an empty change set
	changed, err := ix.Apply(ctx, h, item.NewChangeSet())
	require.NoError(t, err)
	assert.False(t, changed)

	// When: removing an item the index never had
	changed, err = ix.Apply(ctx, h, item.NewChangeSet(item.Remove("ex:missing")))
	require.NoError(t, err)
	assert.False(t, changed)

	// Then: no new reader was published
	assert.Equal(t, gen, h.Generation())
	assert.Equal(t, StateReady, h.State())
}

func TestApply_AddThenRemoveInSameChangeSet(t *testing.T) {
	ix := testIndexer()
	h := buildMemory(t, ix, fruit())

	_, err := ix.Apply(context.Background(), h, item.NewChangeSet(
		item.Add(item.Item{ID: "ex:T", DisplayName: "Transient",
			Annotations: []item.Annotation{{Property: "note", Value: "short lived"}}}),
		item.Remove("ex:T"),
	))
	require.NoError(t, err)

	r, err := ix.Reader(h)
	require.NoError(t, err)
	assert.Empty(t, matching(t, r, FieldDisplayName, "transient"))
	assert.Empty(t, matching(t, r, FieldAnnotationValue, "lived"))
}

func TestHandle_InvalidTransitions(t *testing.T) {
	ix := testIndexer()
	h := NewHandle("fruit", "")

	// Then: an unbuilt handle cannot be updated or queried
	_, err := ix.Apply(context.Background(), h, item.NewChangeSet(item.Remove("x")))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = ix.Reader(h)
	assert.ErrorIs(t, err, ErrNotReady)

	// And: a closed handle stays closed
	require.NoError(t, ix.Close(h))
	assert.Equal(t, StateClosed, h.State())
	assert.NoError(t, ix.Revert(h))
	assert.Equal(t, StateClosed, h.State())
	err = ix.Rebuild(context.Background(), h, AllCategories(), fruit(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOnDisk_CloseCommitsAndRevertDiscards(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ix := testIndexer()

	// Given: two on-disk indexes with pending writes
	clean := NewHandle("clean", root)
	dirty := NewHandle("dirty", root)
	require.NoError(t, ix.Rebuild(ctx, clean, AllCategories(), fruit(), nil))
	require.NoError(t, ix.Rebuild(ctx, dirty, AllCategories(), fruit(), nil))
	assert.True(t, dirty.Pending())
	assert.DirExists(t, dirty.Dir())

	// When: closing one and reverting the other
	require.NoError(t, ix.Close(clean))
	require.NoError(t, ix.Revert(dirty))

	// Then: the closed index is committed with a marker
	assert.Equal(t, StateClosed, clean.State())
	assert.DirExists(t, clean.Dir())
	m, err := ReadMarker(MarkerPath(root, "clean"))
	require.NoError(t, err)
	assert.Equal(t, "clean", m.Collection)
	assert.Equal(t, uint64(4), m.DocCount)
	assert.Equal(t, AllCategories().Names(), m.Categories)

	// And: the reverted index is gone
	assert.Equal(t, StateReverted, dirty.State())
	assert.NoDirExists(t, dirty.Dir())
	assert.NoFileExists(t, MarkerPath(root, "dirty"))

	// And: closing committed the pending writes
	assert.False(t, clean.Pending())
}

func TestOnDisk_RevertAfterPersistKeepsIndex(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ix := testIndexer()
	h := NewHandle("kb", root)
	require.NoError(t, ix.Rebuild(ctx, h, AllCategories(), fruit(), nil))

	// When: persisting and then reverting without further writes
	require.NoError(t, ix.Persist(h))
	assert.False(t, h.Pending())
	require.NoError(t, ix.Revert(h))

	// Then: the committed index survives
	assert.DirExists(t, h.Dir())
	assert.FileExists(t, MarkerPath(root, "kb"))
}

func TestOnDisk_LockContention(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ix := testIndexer()

	// Given: one handle holding the index lock
	first := NewHandle("kb", root)
	require.NoError(t, ix.Rebuild(ctx, first, AllCategories(), fruit(), nil))

	// When: a second handle for the same collection rebuilds
	second := NewHandle("kb", root)
	err := ix.Rebuild(ctx, second, AllCategories(), fruit(), nil)

	// Then: it fails with a lock error and stays unbuilt
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexLocked, apperrors.GetCode(err))
	assert.Equal(t, StateUninitialized, second.State())

	// And: once released, the lock can be taken
	require.NoError(t, ix.Close(first))
	require.NoError(t, ix.Rebuild(ctx, second, AllCategories(), fruit(), nil))
	require.NoError(t, ix.Close(second))
}

func TestListMarkers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ix := testIndexer()
	h := NewHandle("kb", root)
	require.NoError(t, ix.Rebuild(ctx, h, AllCategories(), fruit(), nil))
	require.NoError(t, ix.Close(h))

	// Given: a marker whose index directory was deleted
	require.NoError(t, os.WriteFile(filepath.Join(root, "0000000000000000"+markerSuffix),
		[]byte(`{"collection":"gone"}`), 0o644))

	markers, err := ListMarkers(root)
	require.NoError(t, err)
	require.Len(t, markers, 2)

	assert.Equal(t, "gone", markers[0].Collection)
	assert.False(t, markers[0].Healthy)
	assert.Equal(t, "kb", markers[1].Collection)
	assert.True(t, markers[1].Healthy)
	assert.Equal(t, h.Dir(), markers[1].Dir)
}

func TestCache_CreateOnMissAndEvict(t *testing.T) {
	c := NewCache("")

	h1, created := c.GetOrCreate("a")
	assert.True(t, created)
	h2, created := c.GetOrCreate("a")
	assert.False(t, created)
	assert.Same(t, h1, h2)

	c.GetOrCreate("b")
	assert.Equal(t, 2, c.Len())
	handles := c.Handles()
	assert.Equal(t, item.CollectionID("a"), handles[0].Collection())
	assert.Equal(t, item.CollectionID("b"), handles[1].Collection())

	c.Evict("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestCategory_ParseAndSet(t *testing.T) {
	c, err := ParseCategory("Filtered-Annotation")
	require.NoError(t, err)
	assert.Equal(t, CategoryFilteredAnnotation, c)

	_, err = ParseCategory("colour")
	assert.Error(t, err)

	set, err := ParseCategories([]string{"identifier", "display_name"})
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryDisplayName, CategoryIdentifier}, set.Categories())
	assert.Equal(t, "display_name,identifier", set.String())
	assert.True(t, set.Has(CategoryIdentifier))
	assert.False(t, set.Has(CategoryAnnotationValue))
	assert.Equal(t, 2, set.Len())

	// Fingerprints depend only on membership
	assert.Equal(t, set.Fingerprint(), NewCategorySet(CategoryIdentifier, CategoryDisplayName).Fingerprint())
	assert.NotEqual(t, set.Fingerprint(), AllCategories().Fingerprint())
	assert.True(t, CategorySet{}.IsEmpty())
}

func TestCategory_Field(t *testing.T) {
	assert.Equal(t, FieldDisplayName, CategoryDisplayName.Field())
	assert.Equal(t, FieldIdentifier, CategoryIdentifier.Field())
	assert.Equal(t, FieldAnnotationValue, CategoryAnnotationValue.Field())
	assert.Equal(t, FieldAnnotationValue, CategoryFilteredAnnotation.Field())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "reverted", StateReverted.String())
	assert.True(t, StateClosed.Terminal())
	assert.False(t, StateUpdating.Terminal())
}
