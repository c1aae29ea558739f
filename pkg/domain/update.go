package domain

import (
	"fmt"
	"strings"
)

// TouchedPaths returns the field paths a normalized update expression writes
// to. For $-operator updates these are the operator document's keys; for a
// plain replacement document they are its top-level keys.
func TouchedPaths(update map[string]interface{}) []string {
	var paths []string
	for key, val := range update {
		if strings.HasPrefix(key, "$") {
			if fields, ok := AsMap(val); ok {
				for path := range fields {
					paths = append(paths, path)
				}
			}
			continue
		}
		paths = append(paths, key)
	}
	return paths
}

// ApplyUpdate applies an update expression to a document in place. Supported
// operators are $set, $unset and $inc; an expression without operators is a
// full replacement that preserves _id.
func ApplyUpdate(doc Document, update map[string]interface{}) error {
	operators := false
	for key := range update {
		if strings.HasPrefix(key, "$") {
			operators = true
			break
		}
	}

	if !operators {
		id := doc["_id"]
		for key := range doc {
			delete(doc, key)
		}
		for key, val := range update {
			doc[key] = deepCopyValue(val)
		}
		if id != nil {
			doc["_id"] = id
		}
		return nil
	}

	for op, val := range update {
		fields, ok := AsMap(val)
		if !ok {
			return fmt.Errorf("update operator %s requires a document value", op)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				SetPath(doc, path, deepCopyValue(v))
			}
		case "$unset":
			for path := range fields {
				DeletePath(doc, path)
			}
		case "$inc":
			for path, v := range fields {
				delta, ok := toFloat64(v)
				if !ok {
					return fmt.Errorf("$inc value for %s is not numeric", path)
				}
				cur, exists := GetPath(doc, path)
				if !exists {
					SetPath(doc, path, delta)
					continue
				}
				base, ok := toFloat64(cur)
				if !ok {
					return fmt.Errorf("$inc target %s is not numeric", path)
				}
				SetPath(doc, path, base+delta)
			}
		default:
			return fmt.Errorf("unsupported update operator: %s", op)
		}
	}
	return nil
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
