package domain

// Document represents a document in the database
type Document map[string]interface{}

// Collection represents a collection of documents
type Collection struct {
	Name      string              `json:"name"`
	Documents map[string]Document `json:"documents"`
}

// NewCollection creates a new collection
func NewCollection(name string) *Collection {
	return &Collection{
		Name:      name,
		Documents: make(map[string]Document),
	}
}

// Copy returns a deep copy of the document. Nested maps and slices are
// copied recursively; scalar values are shared.
func (d Document) Copy() Document {
	return Document(deepCopyMap(d))
}

// CopyFilter deep-copies a filter expression tree so it can be rewritten
// without mutating the caller's value.
func CopyFilter(filter map[string]interface{}) map[string]interface{} {
	return deepCopyMap(filter)
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return Document(deepCopyMap(val))
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
