package mapindex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/schema"
)

var (
	// ErrCrossMapIndex is returned when a compound index spec names fields
	// under two distinct map paths.
	ErrCrossMapIndex = errors.New("compound index cannot span multiple map containers")

	// ErrMapIndexType is returned when a map-crossing path requests anything
	// other than an exact-match index.
	ErrMapIndexType = errors.New("map-crossing index must be an exact-match index")

	// ErrRegistryFrozen is returned when an index is declared after the
	// owning model finished initializing.
	ErrRegistryFrozen = errors.New("index registry is frozen")
)

// Declaration is a composite index over one map level: the map path plus one
// or more trailing fields, projected into a single synthetic array field.
type Declaration struct {
	MapPath       string
	Fields        []string // sorted lexicographically
	CanonicalPath string   // MapPath + "^" + Fields joined by "^"
	SyntheticName string
	Unique        bool
	Sparse        bool
}

// PlainIndex is a pass-through index entry whose path never crosses a map.
type PlainIndex struct {
	Path   string
	Type   interface{}
	Unique bool
	Sparse bool
}

// Options carries index options for a declaration.
type Options struct {
	Unique bool
	Sparse bool
}

// Registry owns a model's composite index declarations and the synthetic
// name table. It is written once during model initialization and read-only
// afterwards; the structural path cache is the only post-init mutable state
// and is append-only.
type Registry struct {
	schema *schema.Schema
	frozen bool

	decls       []*Declaration
	byCanonical map[string]*Declaration
	byName      map[string]*Declaration
	plain       []PlainIndex

	cacheMu   sync.RWMutex
	pathCache map[string]*schema.DocPath
}

// NewRegistry creates an empty registry over a schema.
func NewRegistry(s *schema.Schema) *Registry {
	return &Registry{
		schema:      s,
		byCanonical: make(map[string]*Declaration),
		byName:      make(map[string]*Declaration),
		pathCache:   make(map[string]*schema.DocPath),
	}
}

// Declare resolves a user index spec (path -> index type). Paths crossing a
// map are accumulated into one composite declaration; plain paths pass
// through unchanged as a single store index entry. Declaring the same
// canonical composite path twice is idempotent.
func (r *Registry) Declare(spec map[string]interface{}, opts Options) error {
	if r.frozen {
		return ErrRegistryFrozen
	}

	paths := make([]string, 0, len(spec))
	for path := range spec {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var mapPath string
	var fields []string
	var plainKeys []domain.IndexKey

	for _, path := range paths {
		p := stripWildcards(path)
		if !r.schema.HasParentType(p, schema.KindMap) {
			plainKeys = append(plainKeys, domain.IndexKey{Field: p, Type: spec[path]})
			continue
		}
		if !isExactMatch(spec[path]) {
			return fmt.Errorf("index on %s: %w", p, ErrMapIndexType)
		}
		mp, field, ok := r.schema.SplitAtLastMap(p)
		if !ok {
			return fmt.Errorf("index path %s does not resolve against the schema", p)
		}
		if mapPath == "" {
			mapPath = mp
		} else if mapPath != mp {
			return fmt.Errorf("index spanning %s and %s: %w", mapPath, mp, ErrCrossMapIndex)
		}
		fields = append(fields, field)
	}

	for _, key := range plainKeys {
		r.plain = append(r.plain, PlainIndex{Path: key.Field, Type: key.Type, Unique: opts.Unique, Sparse: opts.Sparse})
	}
	if len(fields) == 0 {
		return nil
	}

	sort.Strings(fields)
	canonical := mapPath + "^" + strings.Join(fields, "^")
	if _, exists := r.byCanonical[canonical]; exists {
		return nil
	}

	decl := &Declaration{
		MapPath:       mapPath,
		Fields:        fields,
		CanonicalPath: canonical,
		SyntheticName: syntheticName(canonical),
		Unique:        opts.Unique,
		Sparse:        opts.Sparse,
	}
	r.decls = append(r.decls, decl)
	r.byCanonical[canonical] = decl
	r.byName[decl.SyntheticName] = decl
	return nil
}

// AutoDiscover walks the schema and declares an index for every field
// flagged index/unique/sparse, composite or plain depending on whether the
// field sits under a map.
func (r *Registry) AutoDiscover() error {
	var walkErr error
	r.schema.Walk(func(path string, node *schema.Node) {
		if walkErr != nil || !node.Index {
			return
		}
		err := r.Declare(map[string]interface{}{path: 1}, Options{Unique: node.Unique, Sparse: node.Sparse})
		if err != nil {
			walkErr = err
		}
	})
	return walkErr
}

// Freeze marks the registry immutable. Called once when the owning model
// finishes initializing.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Declarations returns the composite declarations in declaration order.
func (r *Registry) Declarations() []*Declaration {
	return r.decls
}

// ByCanonicalPath looks up a declaration by its canonical composite path.
func (r *Registry) ByCanonicalPath(canonical string) (*Declaration, bool) {
	d, ok := r.byCanonical[canonical]
	return d, ok
}

// BySyntheticName reverse-looks-up a declaration by its synthetic field name.
func (r *Registry) BySyntheticName(name string) (*Declaration, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// SyntheticNames returns the synthetic field names of all declarations, the
// set of hidden fields to strip from application-facing documents.
func (r *Registry) SyntheticNames() []string {
	names := make([]string, 0, len(r.decls))
	for _, d := range r.decls {
		names = append(names, d.SyntheticName)
	}
	return names
}

// StoreIndexes returns the index definitions the underlying store must
// build: one multikey entry per composite declaration plus the plain
// pass-through entries.
func (r *Registry) StoreIndexes() []domain.IndexDef {
	defs := make([]domain.IndexDef, 0, len(r.decls)+len(r.plain))
	for _, d := range r.decls {
		defs = append(defs, domain.IndexDef{
			Keys:   []domain.IndexKey{{Field: d.SyntheticName, Type: 1}},
			Unique: d.Unique,
			Sparse: d.Sparse,
		})
	}
	for _, p := range r.plain {
		defs = append(defs, domain.IndexDef{
			Keys:   []domain.IndexKey{{Field: p.Path, Type: p.Type}},
			Unique: p.Unique,
			Sparse: p.Sparse,
		})
	}
	return defs
}

// resolveDocPath resolves a document-form path against the schema, memoized
// per distinct path string for the registry's lifetime. Negative results are
// cached as nil entries.
func (r *Registry) resolveDocPath(path string) (*schema.DocPath, bool) {
	r.cacheMu.RLock()
	dp, hit := r.pathCache[path]
	r.cacheMu.RUnlock()
	if hit {
		return dp, dp != nil
	}

	dp, ok := r.schema.ResolveDocPath(path)
	if !ok {
		dp = nil
	}
	r.cacheMu.Lock()
	r.pathCache[path] = dp
	r.cacheMu.Unlock()
	return dp, dp != nil
}

// syntheticName derives the short, store-safe field name standing in for a
// canonical composite path: a fixed 16-character token free of path and
// operator syntax characters, never underscore- or dollar-prefixed.
func syntheticName(canonical string) string {
	return fmt.Sprintf("x%015x", xxhash.Sum64String(canonical)>>4)
}

// stripWildcards drops array positional markers from a user index path.
func stripWildcards(path string) string {
	comps := strings.Split(path, ".")
	out := comps[:0]
	for _, c := range comps {
		if c == "$" || c == "$[]" || c == "*" {
			continue
		}
		out = append(out, c)
	}
	return strings.Join(out, ".")
}

// isExactMatch reports whether an index type token denotes a plain
// exact-match index.
func isExactMatch(t interface{}) bool {
	switch v := t.(type) {
	case bool:
		return v
	case int:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	default:
		return false
	}
}
