package mapindex

import (
	"sort"
	"strings"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/schema"
)

// Projector expands live map keys of a document into encoded tuples under
// each declaration's synthetic field. It must run on every insert and every
// full re-save, after normalization and before the write is issued.
type Projector struct {
	reg *Registry
}

// NewProjector creates a projector over a registry.
func NewProjector(reg *Registry) *Projector {
	return &Projector{reg: reg}
}

// branch is one live key path through the map containers of a declaration's
// map path, with the sub-document found at its end.
type branch struct {
	keys []string
	val  interface{}
}

// Project recomputes every synthetic field of the document in place.
// Synthetic fields are always rebuilt in full; they are never patched
// incrementally.
func (p *Projector) Project(doc domain.Document) error {
	for _, decl := range p.reg.Declarations() {
		tuples, err := p.collect(decl, doc)
		if err != nil {
			return err
		}
		if len(tuples) > 0 {
			doc[decl.SyntheticName] = tuples
		} else {
			delete(doc, decl.SyntheticName)
		}
	}
	return nil
}

// collect walks the declaration's map path against the actual document,
// branching into every live key at each map boundary, and emits one encoded
// tuple per branch for which every declared field resolves to a defined,
// non-null value. Partial branches contribute nothing.
func (p *Projector) collect(decl *Declaration, doc domain.Document) ([]string, error) {
	var branches []branch
	expandMapPath(p.reg.schema.Root(), map[string]interface{}(doc), strings.Split(decl.MapPath, "."), nil, &branches)

	var tuples []string
	for _, b := range branches {
		sub, ok := domain.AsMap(b.val)
		if !ok {
			continue
		}
		values := make([]interface{}, 0, len(b.keys)+len(decl.Fields))
		for _, k := range b.keys {
			values = append(values, k)
		}
		complete := true
		for _, field := range decl.Fields {
			v, found := domain.GetPath(sub, field)
			if !found || v == nil {
				complete = false
				break
			}
			values = append(values, v)
		}
		if !complete {
			continue
		}
		tuple, err := EncodeString(values)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, tuple)
	}
	return tuples, nil
}

// expandMapPath walks path components against the schema and the document
// simultaneously. At each map node it branches into every live key present
// at that position, accumulating the key; when the components are exhausted
// it emits a branch.
func expandMapPath(node *schema.Node, val interface{}, comps []string, keys []string, out *[]branch) {
	if node == nil || val == nil {
		return
	}
	if node.Kind == schema.KindMap {
		m, ok := domain.AsMap(val)
		if !ok {
			return
		}
		liveKeys := make([]string, 0, len(m))
		for k := range m {
			liveKeys = append(liveKeys, k)
		}
		sort.Strings(liveKeys)
		for _, k := range liveKeys {
			next := append(append([]string{}, keys...), k)
			// Directly nested maps keep branching: one concrete key per map
			// level, matching document-form path resolution.
			if len(comps) == 0 && (node.Value == nil || node.Value.Kind != schema.KindMap) {
				*out = append(*out, branch{keys: next, val: m[k]})
				continue
			}
			expandMapPath(node.Value, m[k], comps, next, out)
		}
		return
	}
	if len(comps) == 0 {
		*out = append(*out, branch{keys: keys, val: val})
		return
	}
	if node.Kind != schema.KindObject {
		return
	}
	child, ok := node.Fields[comps[0]]
	if !ok {
		return
	}
	m, ok := domain.AsMap(val)
	if !ok {
		return
	}
	expandMapPath(child, m[comps[0]], comps[1:], keys, out)
}
