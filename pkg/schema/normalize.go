package schema

import (
	"math"
	"time"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// Normalize coerces the document's values to the schema's canonical Go types
// in place. Canonical types keep the binary encoding of a value stable
// between writes and queries: number fields become int32 when integral and in
// range (float64 otherwise), int fields become int32/int64, date fields
// become time.Time.
func (s *Schema) Normalize(doc domain.Document) {
	normalizeObject(s.root, map[string]interface{}(doc))
}

func normalizeObject(n *Node, m map[string]interface{}) {
	for name, field := range n.Fields {
		if val, ok := m[name]; ok {
			m[name] = CoerceValue(field, val)
		}
	}
}

// CoerceValue coerces a single value to the node's canonical type, recursing
// into containers. Values that do not fit the node's kind pass through
// unchanged; validation is not this layer's job.
func CoerceValue(n *Node, v interface{}) interface{} {
	if v == nil || n == nil {
		return v
	}
	switch n.Kind {
	case KindObject:
		if m, ok := domain.AsMap(v); ok {
			normalizeObject(n, m)
		}
		return v
	case KindMap:
		if m, ok := domain.AsMap(v); ok {
			for k, val := range m {
				m[k] = CoerceValue(n.Value, val)
			}
		}
		return v
	case KindArray:
		if arr, ok := v.([]interface{}); ok {
			for i, e := range arr {
				arr[i] = CoerceValue(n.Value, e)
			}
		}
		return v
	case KindNumber:
		return coerceNumber(v)
	case KindInt:
		return coerceInt(v)
	case KindDate:
		return coerceDate(v)
	default:
		return v
	}
}

func coerceNumber(v interface{}) interface{} {
	f, ok := asFloat64(v)
	if !ok {
		return v
	}
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
		return int32(f)
	}
	return f
}

func coerceInt(v interface{}) interface{} {
	switch n := v.(type) {
	case int32:
		return n
	case int64:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n)
		}
		return n
	}
	f, ok := asFloat64(v)
	if !ok {
		return v
	}
	if f >= math.MinInt32 && f <= math.MaxInt32 {
		return int32(f)
	}
	return int64(f)
}

func coerceDate(v interface{}) interface{} {
	switch d := v.(type) {
	case time.Time:
		return d.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t.UTC()
		}
	}
	return v
}

func asFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
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
