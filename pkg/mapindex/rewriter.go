package mapindex

import (
	"sort"
	"strings"
	"time"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/schema"
)

// Rewriter replaces map-path predicates in a filter tree with predicates on
// the declarations' synthetic fields. Every condition that makes a rewrite
// unsafe leaves the affected clause untouched: the filter stays semantically
// identical and the store falls back to an unindexed scan for that clause.
type Rewriter struct {
	reg *Registry
}

// NewRewriter creates a rewriter over a registry.
func NewRewriter(reg *Registry) *Rewriter {
	return &Rewriter{reg: reg}
}

// Rewrite rewrites the filter in place and returns it. Callers that must
// keep the original intact pass a copy.
func (rw *Rewriter) Rewrite(filter map[string]interface{}) map[string]interface{} {
	if filter == nil {
		return nil
	}
	rw.rewriteClause(filter)
	return filter
}

type qualified struct {
	key string
	dp  *schema.DocPath
}

func (rw *Rewriter) rewriteClause(clause map[string]interface{}) {
	for _, comb := range []string{"$and", "$or", "$nor"} {
		switch arr := clause[comb].(type) {
		case []interface{}:
			for _, member := range arr {
				if sub, ok := domain.AsMap(member); ok {
					rw.rewriteClause(sub)
				}
			}
		case []map[string]interface{}:
			for _, sub := range arr {
				rw.rewriteClause(sub)
			}
		}
	}

	var quals []qualified
	for key := range clause {
		if strings.HasPrefix(key, "$") {
			continue
		}
		dp, ok := rw.reg.resolveDocPath(key)
		if !ok {
			continue
		}
		quals = append(quals, qualified{key: key, dp: dp})
	}
	if len(quals) == 0 {
		return
	}

	// One clause can only be served by one synthetic field: all qualifying
	// keys must share the same map path and the same concrete key sequence.
	first := quals[0].dp
	for _, q := range quals[1:] {
		if q.dp.MapPath != first.MapPath || !sameKeys(q.dp.Keys, first.Keys) {
			return
		}
	}
	sort.Slice(quals, func(i, j int) bool { return quals[i].dp.Field < quals[j].dp.Field })

	if len(quals) > 1 {
		rw.rewriteMulti(clause, quals)
		return
	}
	rw.rewriteSingle(clause, quals[0])
}

// rewriteMulti handles the multi-field case: every qualifying value must be
// an implicit or explicit equality, collected in sorted field order into one
// encoded tuple.
func (rw *Rewriter) rewriteMulti(clause map[string]interface{}, quals []qualified) {
	fields := make([]string, len(quals))
	values := make([]interface{}, 0, len(quals[0].dp.Keys)+len(quals))
	for _, k := range quals[0].dp.Keys {
		values = append(values, k)
	}
	for i, q := range quals {
		v, ok := collapseEq(clause[q.key])
		if !ok {
			return
		}
		fields[i] = q.dp.Field
		values = append(values, schema.CoerceValue(q.dp.Node, v))
	}

	canonical := quals[0].dp.MapPath + "^" + strings.Join(fields, "^")
	decl, ok := rw.reg.ByCanonicalPath(canonical)
	if !ok {
		return
	}
	tuple, err := EncodeString(values)
	if err != nil {
		return
	}
	clause[decl.SyntheticName] = tuple
	for _, q := range quals {
		delete(clause, q.key)
	}
}

// rewriteSingle handles the single-field case: equality or a one/two-sided
// range over $lt/$lte/$gt/$gte. A one-sided range gets its missing bound
// synthesized from the key-only encoding.
func (rw *Rewriter) rewriteSingle(clause map[string]interface{}, q qualified) {
	canonical := q.dp.MapPath + "^" + q.dp.Field
	decl, ok := rw.reg.ByCanonicalPath(canonical)
	if !ok {
		return
	}

	raw := clause[q.key]
	if v, ok := collapseEq(raw); ok {
		tuple, err := EncodeString(withKeys(q.dp.Keys, schema.CoerceValue(q.dp.Node, v)))
		if err != nil {
			return
		}
		clause[decl.SyntheticName] = tuple
		delete(clause, q.key)
		return
	}

	ops, ok := domain.AsMap(raw)
	if !ok {
		return
	}
	var loOp, hiOp string
	var loVal, hiVal interface{}
	for op, v := range ops {
		switch op {
		case "$lt", "$lte":
			if hiOp != "" {
				return
			}
			hiOp, hiVal = op, v
		case "$gt", "$gte":
			if loOp != "" {
				return
			}
			loOp, loVal = op, v
		default:
			return
		}
	}
	if loOp == "" && hiOp == "" {
		return
	}

	var low, high []byte
	var err error
	if hiOp != "" {
		high, err = Encode(withKeys(q.dp.Keys, schema.CoerceValue(q.dp.Node, hiVal)))
		if err != nil {
			return
		}
	}
	if loOp != "" {
		low, err = Encode(withKeys(q.dp.Keys, schema.CoerceValue(q.dp.Node, loVal)))
		if err != nil {
			return
		}
	}
	if low == nil {
		// Key-only prefix with the leading length byte aligned to the real
		// bound so the two encodings compare as siblings.
		low, err = Encode(withKeys(q.dp.Keys))
		if err != nil {
			return
		}
		low[0] = high[0]
		loOp = "$gte"
	}
	if high == nil {
		high, err = Encode(withKeys(q.dp.Keys))
		if err != nil {
			return
		}
		high[0] = low[0]
		if !incrementBytes(high) {
			// Already the maximum representable bound; an incremented value
			// would be wrong, so this clause keeps its original form.
			return
		}
		hiOp = "$lt"
	}

	clause[decl.SyntheticName] = map[string]interface{}{loOp: string(low), hiOp: string(high)}
	delete(clause, q.key)
}

// collapseEq reduces an implicit or explicit equality to its bare scalar
// value. Operator maps other than a lone $eq, document literals and array
// literals do not qualify.
func collapseEq(v interface{}) (interface{}, bool) {
	if m, ok := domain.AsMap(v); ok {
		if len(m) == 1 {
			if eq, ok := m["$eq"]; ok {
				return eq, isScalar(eq)
			}
		}
		return nil, false
	}
	if _, ok := v.([]interface{}); ok {
		return nil, false
	}
	return v, isScalar(v)
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return true
	default:
		return false
	}
}

func withKeys(keys []string, values ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(keys)+len(values))
	for _, k := range keys {
		out = append(out, k)
	}
	return append(out, values...)
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
