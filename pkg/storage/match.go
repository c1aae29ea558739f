package storage

import (
	"strings"
	"time"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// MatchesFilter checks if a document matches the given filter criteria.
// Filters use the store's native expression shape: field paths mapped to a
// value (implicit equality) or to an operator document, plus the $and/$or/
// $nor combinators. Array-valued fields use multikey semantics: a predicate
// holds when any element satisfies it.
func MatchesFilter(doc domain.Document, filter map[string]interface{}) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range clauseList(cond) {
				if !MatchesFilter(doc, sub) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range clauseList(cond) {
				if MatchesFilter(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$nor":
			for _, sub := range clauseList(cond) {
				if MatchesFilter(doc, sub) {
					return false
				}
			}
		default:
			val, exists := domain.GetPath(doc, key)
			if !matchValue(val, exists, cond) {
				return false
			}
		}
	}
	return true
}

func clauseList(v interface{}) []map[string]interface{} {
	switch arr := v.(type) {
	case []map[string]interface{}:
		return arr
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(arr))
		for _, e := range arr {
			if m, ok := domain.AsMap(e); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func matchValue(actual interface{}, exists bool, cond interface{}) bool {
	if ops, ok := domain.AsMap(cond); ok && hasOperator(ops) {
		for op, v := range ops {
			if !applyOperator(op, actual, exists, v) {
				return false
			}
		}
		return true
	}
	return exists && valuesEqual(actual, cond)
}

func hasOperator(m map[string]interface{}) bool {
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

func applyOperator(op string, actual interface{}, exists bool, expected interface{}) bool {
	switch op {
	case "$eq":
		return exists && valuesEqual(actual, expected)
	case "$ne":
		return !exists || !valuesEqual(actual, expected)
	case "$exists":
		want, _ := expected.(bool)
		return exists == want
	case "$in":
		if !exists {
			return false
		}
		list, ok := expected.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range list {
			if valuesEqual(actual, candidate) {
				return true
			}
		}
		return false
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false
		}
		return anyElement(actual, func(e interface{}) bool {
			c, ok := compareValues(e, expected)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		})
	default:
		return false
	}
}

// valuesEqual compares two values for equality, handling numeric cross-type
// comparison and multikey array fields. String comparison is byte-exact:
// encoded index tuples are opaque byte strings and must never be folded.
func valuesEqual(actual, expected interface{}) bool {
	return anyElement(actual, func(e interface{}) bool {
		if e == nil && expected == nil {
			return true
		}
		if e == nil || expected == nil {
			return false
		}
		if c, ok := compareValues(e, expected); ok {
			return c == 0
		}
		return e == expected
	})
}

// anyElement applies fn to each element of an array-valued field, or to the
// value itself when it is not an array.
func anyElement(actual interface{}, fn func(interface{}) bool) bool {
	switch arr := actual.(type) {
	case []string:
		for _, e := range arr {
			if fn(e) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, e := range arr {
			if fn(e) {
				return true
			}
		}
		return false
	default:
		return fn(actual)
	}
}

// compareValues orders two scalar values of compatible types. Strings order
// byte-wise, which is what makes range predicates over encoded tuples work.
func compareValues(a, b interface{}) (int, bool) {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
		return 0, false
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), true
		}
		return 0, false
	}
	af, aok := ToFloat64(a)
	bf, bok := ToFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// ToFloat64 converts various numeric types to float64 for comparison
func ToFloat64(value interface{}) (float64, bool) {
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

// IntersectStringSlices returns the intersection of multiple string slices.
// This is used for index intersection in multi-field queries.
func IntersectStringSlices(slices ...[]string) []string {
	if len(slices) == 0 {
		return nil
	}
	if len(slices) == 1 {
		return slices[0]
	}

	countMap := make(map[string]int)
	for _, slice := range slices {
		seen := make(map[string]bool)
		for _, id := range slice {
			if !seen[id] {
				countMap[id]++
				seen[id] = true
			}
		}
	}

	var result []string
	expectedCount := len(slices)
	for id, count := range countMap {
		if count == expectedCount {
			result = append(result, id)
		}
	}
	return result
}
