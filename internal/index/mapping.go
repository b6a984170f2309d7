package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/ontosearch/internal/item"
)

// Index field names. Every document carries FieldItemID and FieldKind.
const (
	FieldItemID             = "item_id"
	FieldKind               = "kind"
	FieldDisplayName        = "display_name"
	FieldIdentifier         = "identifier"
	FieldIdentifierExact    = "identifier_exact"
	FieldAnnotationProperty = "annotation_property"
	FieldAnnotationValue    = "annotation_value"
)

// Document kinds.
const (
	KindEntity     = "entity"
	KindAnnotation = "annotation"
)

// newIndexMapping creates the mapping shared by every index. Identity and
// property fields are indexed verbatim; text fields use the standard
// analyzer so searches are case-insensitive. FieldIdentifierExact holds the
// whole lower-cased identifier as a single term.
func newIndexMapping() *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	doc.AddFieldMappingsAt(FieldItemID, keywordField())
	doc.AddFieldMappingsAt(FieldKind, keywordField())
	doc.AddFieldMappingsAt(FieldAnnotationProperty, keywordField())
	doc.AddFieldMappingsAt(FieldDisplayName, textField())
	doc.AddFieldMappingsAt(FieldIdentifier, textField())
	exact := keywordField()
	exact.Store = false
	doc.AddFieldMappingsAt(FieldIdentifierExact, exact)
	doc.AddFieldMappingsAt(FieldAnnotationValue, textField())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	fm.Store = true
	fm.IncludeTermVectors = false
	fm.IncludeInAll = false
	return fm
}

func textField() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = standard.Name
	fm.Store = true
	fm.IncludeInAll = false
	return fm
}

// document is one bleve document derived from an item.
type document struct {
	id     string
	fields map[string]interface{}
}

// annotationDocID returns the id of the n-th annotation document of an
// item. NUL cannot occur in an IRI, so these ids never collide with the
// entity document of another item.
func annotationDocID(id item.ID, n int) string {
	return fmt.Sprintf("%s\x00%d", id, n)
}

// documentsFor returns the documents written for it. One entity document
// carries the item's own fields; each annotation becomes its own document
// so that property and value stay paired. Fields of inactive categories
// are omitted.
func documentsFor(it item.Item, cats CategorySet) []document {
	entity := map[string]interface{}{
		FieldItemID: string(it.ID),
		FieldKind:   KindEntity,
	}
	if cats.Has(CategoryDisplayName) {
		entity[FieldDisplayName] = it.Label()
	}
	if cats.Has(CategoryIdentifier) {
		entity[FieldIdentifier] = string(it.ID)
		entity[FieldIdentifierExact] = strings.ToLower(string(it.ID))
	}
	docs := []document{{id: string(it.ID), fields: entity}}

	if !cats.indexesAnnotations() {
		return docs
	}
	for n, a := range it.Annotations {
		if a.Value == "" {
			continue
		}
		docs = append(docs, document{
			id: annotationDocID(it.ID, n),
			fields: map[string]interface{}{
				FieldItemID:             string(it.ID),
				FieldKind:               KindAnnotation,
				FieldAnnotationProperty: a.Property,
				FieldAnnotationValue:    a.Value,
			},
		})
	}
	return docs
}
