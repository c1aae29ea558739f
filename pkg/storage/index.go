package storage

import (
	"time"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// Index stores a mapping from a field's values to document IDs. Array-valued
// fields are multikey: every element gets its own entry, which is what makes
// equality lookups on synthetic tuple fields fast.
type Index struct {
	Field    string
	Unique   bool
	Inverted map[interface{}][]string
}

// NewIndex creates an index on a specific field.
func NewIndex(field string, unique bool) *Index {
	return &Index{
		Field:    field,
		Unique:   unique,
		Inverted: make(map[interface{}][]string),
	}
}

// Add indexes a document's values for this field.
func (idx *Index) Add(docID string, doc domain.Document) {
	for _, key := range indexKeys(doc, idx.Field) {
		idx.Inverted[key] = append(idx.Inverted[key], docID)
	}
}

// Remove drops a document's entries from the index.
func (idx *Index) Remove(docID string, doc domain.Document) {
	for _, key := range indexKeys(doc, idx.Field) {
		ids := idx.Inverted[key]
		for i, id := range ids {
			if id == docID {
				idx.Inverted[key] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(idx.Inverted[key]) == 0 {
			delete(idx.Inverted, key)
		}
	}
}

// Query returns document IDs that match a given value in the indexed field.
func (idx *Index) Query(value interface{}) ([]string, bool) {
	key, ok := normalizeIndexKey(value)
	if !ok {
		return nil, false
	}
	return idx.Inverted[key], true
}

// Conflicts reports whether indexing the document would violate uniqueness,
// ignoring entries belonging to docID itself.
func (idx *Index) Conflicts(docID string, doc domain.Document) bool {
	if !idx.Unique {
		return false
	}
	for _, key := range indexKeys(doc, idx.Field) {
		for _, id := range idx.Inverted[key] {
			if id != docID {
				return true
			}
		}
	}
	return false
}

// indexKeys expands a document field into its index entries, one per array
// element for multikey fields. Only scalar values are indexable.
func indexKeys(doc domain.Document, field string) []interface{} {
	val, ok := domain.GetPath(doc, field)
	if !ok || val == nil {
		return nil
	}
	var keys []interface{}
	collect := func(v interface{}) {
		if key, ok := normalizeIndexKey(v); ok {
			keys = append(keys, key)
		}
	}
	switch arr := val.(type) {
	case []string:
		for _, e := range arr {
			collect(e)
		}
	case []interface{}:
		for _, e := range arr {
			collect(e)
		}
	default:
		collect(val)
	}
	return keys
}

// normalizeIndexKey folds numeric types into float64 so an int32 write and
// an int64 lookup land on the same entry.
func normalizeIndexKey(v interface{}) (interface{}, bool) {
	switch key := v.(type) {
	case string:
		return key, true
	case bool:
		return key, true
	case time.Time:
		return key.UnixMilli(), true
	}
	if f, ok := ToFloat64(v); ok {
		return f, true
	}
	return nil, false
}
