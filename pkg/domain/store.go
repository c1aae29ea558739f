package domain

import "context"

// FindOptions controls result windowing for Find calls.
type FindOptions struct {
	Limit  int
	Offset int
}

// IndexKey is a single field of an index definition. Type is the store's
// index type token: 1/-1 for ordered indexes, or a named type like "text".
type IndexKey struct {
	Field string
	Type  interface{}
}

// IndexDef is a store-agnostic index definition.
type IndexDef struct {
	Keys   []IndexKey
	Unique bool
	Sparse bool
}

// Store is the document store a model persists through. Filters and updates
// use the store's native expression shape (map trees with $-operators), so a
// rewritten filter passes through unchanged.
type Store interface {
	Insert(ctx context.Context, coll string, doc Document) error
	Find(ctx context.Context, coll string, filter map[string]interface{}, opts *FindOptions) ([]Document, error)
	FindStream(ctx context.Context, coll string, filter map[string]interface{}) (<-chan Document, error)
	ReplaceOne(ctx context.Context, coll string, filter map[string]interface{}, doc Document) (int64, error)
	UpdateMany(ctx context.Context, coll string, filter, update map[string]interface{}) (int64, error)
	DeleteMany(ctx context.Context, coll string, filter map[string]interface{}) (int64, error)
	Count(ctx context.Context, coll string, filter map[string]interface{}) (int64, error)
	EnsureIndex(ctx context.Context, coll string, def IndexDef) error
}
