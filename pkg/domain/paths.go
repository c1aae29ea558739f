package domain

import "strings"

// AsMap normalizes a value to map[string]interface{} regardless of whether it
// was stored as a Document or a plain map.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case Document:
		return map[string]interface{}(m), true
	case map[string]interface{}:
		return m, true
	default:
		return nil, false
	}
}

// GetPath resolves a dotted path against nested maps. Returns nil, false when
// any component is absent or a non-map value is traversed.
func GetPath(doc map[string]interface{}, path string) (interface{}, bool) {
	cur := interface{}(doc)
	for _, comp := range strings.Split(path, ".") {
		m, ok := AsMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[comp]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath sets a value at a dotted path, creating intermediate maps as
// needed. Traversal through an existing non-map value replaces it.
func SetPath(doc map[string]interface{}, path string, value interface{}) {
	comps := strings.Split(path, ".")
	cur := doc
	for _, comp := range comps[:len(comps)-1] {
		next, ok := AsMap(cur[comp])
		if !ok {
			next = make(map[string]interface{})
			cur[comp] = next
		}
		cur = next
	}
	cur[comps[len(comps)-1]] = value
}

// DeletePath removes the value at a dotted path if it exists.
func DeletePath(doc map[string]interface{}, path string) {
	comps := strings.Split(path, ".")
	cur := doc
	for _, comp := range comps[:len(comps)-1] {
		next, ok := AsMap(cur[comp])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, comps[len(comps)-1])
}
