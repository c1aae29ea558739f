// Package schema defines the typed field tree a model is declared against.
// A schema is immutable once handed to a model: resolution results may be
// cached indefinitely by callers.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the type of a schema node.
type Kind int

const (
	KindObject Kind = iota
	KindMap
	KindArray
	KindString
	KindNumber
	KindInt
	KindBool
	KindDate
	KindAny
)

// Node is a single field definition. Object nodes have Fields; map and array
// nodes have a Value schema that all entries conform to.
type Node struct {
	Kind   Kind
	Fields map[string]*Node
	Value  *Node

	Index  bool
	Unique bool
	Sparse bool
}

// Object creates an object node with statically named fields.
func Object(fields map[string]*Node) *Node {
	return &Node{Kind: KindObject, Fields: fields}
}

// Map creates a map node: a container keyed by arbitrary runtime strings
// whose entries all conform to value.
func Map(value *Node) *Node {
	return &Node{Kind: KindMap, Value: value}
}

// Array creates an array node whose elements conform to elem.
func Array(elem *Node) *Node {
	return &Node{Kind: KindArray, Value: elem}
}

func String() *Node { return &Node{Kind: KindString} }
func Number() *Node { return &Node{Kind: KindNumber} }
func Int() *Node    { return &Node{Kind: KindInt} }
func Bool() *Node   { return &Node{Kind: KindBool} }
func Date() *Node   { return &Node{Kind: KindDate} }
func Any() *Node    { return &Node{Kind: KindAny} }

// Indexed marks the node for index auto-discovery.
func (n *Node) Indexed() *Node {
	n.Index = true
	return n
}

// UniqueIndex marks the node for a unique index.
func (n *Node) UniqueIndex() *Node {
	n.Index = true
	n.Unique = true
	return n
}

// SparseIndex marks the node's index as sparse.
func (n *Node) SparseIndex() *Node {
	n.Index = true
	n.Sparse = true
	return n
}

// ContainsMap reports whether the node or any of its descendants is a map.
func (n *Node) ContainsMap() bool {
	switch n.Kind {
	case KindMap:
		return true
	case KindArray:
		return n.Value != nil && n.Value.ContainsMap()
	case KindObject:
		for _, f := range n.Fields {
			if f.ContainsMap() {
				return true
			}
		}
	}
	return false
}

// Schema is a validated field tree rooted at an object node.
type Schema struct {
	root *Node
}

// New validates and wraps a root node.
func New(root *Node) (*Schema, error) {
	if root == nil || root.Kind != KindObject {
		return nil, fmt.Errorf("schema root must be an object node")
	}
	return &Schema{root: root}, nil
}

// MustNew is New for static schema literals.
func MustNew(root *Node) *Schema {
	s, err := New(root)
	if err != nil {
		panic(err)
	}
	return s
}

// Root returns the schema's root object node.
func (s *Schema) Root() *Node {
	return s.root
}

// Resolve resolves a declaration-form path (map keys elided) to its node.
func (s *Schema) Resolve(path string) (*Node, bool) {
	cur := s.root
	for _, comp := range strings.Split(path, ".") {
		for cur != nil && (cur.Kind == KindMap || cur.Kind == KindArray) {
			cur = cur.Value
		}
		if cur == nil || cur.Kind != KindObject {
			return nil, false
		}
		next, ok := cur.Fields[comp]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// HasParentType reports whether a declaration-form path passes through a node
// of the given kind on the way to its final component.
func (s *Schema) HasParentType(path string, kind Kind) bool {
	comps := strings.Split(path, ".")
	cur := s.root
	for i, comp := range comps {
		for cur != nil && (cur.Kind == KindMap || cur.Kind == KindArray) {
			if cur.Kind == kind {
				return true
			}
			cur = cur.Value
		}
		if cur == nil || cur.Kind != KindObject {
			return false
		}
		next, ok := cur.Fields[comp]
		if !ok {
			return false
		}
		if i < len(comps)-1 && next.Kind == kind {
			return true
		}
		cur = next
	}
	return false
}

// SplitAtLastMap splits a declaration-form path at the last map it crosses,
// returning the path up to and including the map and the remaining field
// suffix. ok is false when the path does not cross a map or does not resolve.
func (s *Schema) SplitAtLastMap(path string) (mapPath, field string, ok bool) {
	comps := strings.Split(path, ".")
	cur := s.root
	last := -1
	for i, comp := range comps {
		for cur != nil && (cur.Kind == KindMap || cur.Kind == KindArray) {
			cur = cur.Value
		}
		if cur == nil || cur.Kind != KindObject {
			return "", "", false
		}
		next, exists := cur.Fields[comp]
		if !exists {
			return "", "", false
		}
		if next.Kind == KindMap && i < len(comps)-1 {
			last = i
		}
		cur = next
	}
	if last < 0 {
		return "", "", false
	}
	return strings.Join(comps[:last+1], "."), strings.Join(comps[last+1:], "."), true
}

// DocPath is the structural resolution of a document-form path (map keys
// present as literal components) that crosses at least one map.
type DocPath struct {
	MapPath string   // declaration-form path up to and including the last map
	Keys    []string // concrete map keys, outermost first
	Field   string   // trailing field path inside the last map's value schema
	Node    *Node    // schema node of the trailing field
}

// ResolveDocPath resolves a document-form path. Each map along the way
// consumes one concrete key component. ok is false when the path does not
// cross a map, crosses an array, ends on a map or a bare key, or does not
// resolve against the schema.
func (s *Schema) ResolveDocPath(path string) (*DocPath, bool) {
	comps := strings.Split(path, ".")
	cur := s.root
	var keys []string
	var decl []string
	lastMap := -1
	i := 0
	for i < len(comps) {
		switch cur.Kind {
		case KindMap:
			keys = append(keys, comps[i])
			lastMap = len(decl) - 1
			cur = cur.Value
			i++
		case KindArray:
			return nil, false
		case KindObject:
			next, ok := cur.Fields[comps[i]]
			if !ok {
				return nil, false
			}
			decl = append(decl, comps[i])
			cur = next
			i++
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	if lastMap < 0 || len(decl) == lastMap+1 {
		return nil, false
	}
	return &DocPath{
		MapPath: strings.Join(decl[:lastMap+1], "."),
		Keys:    keys,
		Field:   strings.Join(decl[lastMap+1:], "."),
		Node:    cur,
	}, true
}

// TouchesMap reports whether a document-form path reaches into, or writes
// over, any map container.
func (s *Schema) TouchesMap(path string) bool {
	comps := strings.Split(path, ".")
	cur := s.root
	i := 0
	for i < len(comps) {
		switch cur.Kind {
		case KindMap:
			return true
		case KindArray:
			cur = cur.Value
			i++
		case KindObject:
			next, ok := cur.Fields[comps[i]]
			if !ok {
				return false
			}
			cur = next
			i++
		default:
			return false
		}
		if cur == nil {
			return false
		}
	}
	return cur.ContainsMap()
}

// Walk visits every named field node in deterministic order, passing its
// declaration-form path. Map and array value schemas are visited under the
// container's own path.
func (s *Schema) Walk(fn func(path string, node *Node)) {
	walkNode("", s.root, fn)
}

func walkNode(prefix string, n *Node, fn func(path string, node *Node)) {
	switch n.Kind {
	case KindObject:
		names := make([]string, 0, len(n.Fields))
		for name := range n.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := n.Fields[name]
			p := name
			if prefix != "" {
				p = prefix + "." + name
			}
			fn(p, child)
			walkNode(p, child, fn)
		}
	case KindMap, KindArray:
		if n.Value != nil {
			walkNode(prefix, n.Value, fn)
		}
	}
}
