package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// Engine is an embedded, in-memory document store with optional single-file
// persistence. It implements domain.Store with the same filter and update
// expression semantics the query rewriter targets, including multikey
// matching on array fields, so models behave identically against it and
// against a remote store.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*domain.Collection
	indexes     map[string]map[string]*Index
	indexDefs   map[string][]domain.IndexDef
	dirty       bool

	// Configuration
	dataFile        string
	transactionSave bool
	backgroundSave  bool
	saveInterval    time.Duration

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
}

// NewEngine creates a new storage engine
func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		collections:     make(map[string]*domain.Collection),
		indexes:         make(map[string]map[string]*Index),
		indexDefs:       make(map[string][]domain.IndexDef),
		transactionSave: true,
		saveInterval:    5 * time.Minute,
		stopChan:        make(chan struct{}),
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

var _ domain.Store = (*Engine)(nil)

// Insert inserts a document into a collection, creating the collection on
// first use. The document must carry a string _id.
func (e *Engine) Insert(ctx context.Context, coll string, doc domain.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.getOrCreateCollection(coll)
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("document requires a string _id")
	}
	if _, exists := c.Documents[id]; exists {
		return fmt.Errorf("document %s in collection %s: %w", id, coll, domain.ErrDuplicateKey)
	}
	for _, idx := range e.indexes[coll] {
		if idx.Conflicts(id, doc) {
			return fmt.Errorf("unique index on %s: %w", idx.Field, domain.ErrDuplicateKey)
		}
	}

	stored := doc.Copy()
	c.Documents[id] = stored
	for _, idx := range e.indexes[coll] {
		idx.Add(id, stored)
	}
	e.dirty = true
	return e.saveAfterTransaction()
}

// Find returns copies of documents matching the filter, ordered by _id.
func (e *Engine) Find(ctx context.Context, coll string, filter map[string]interface{}, opts *domain.FindOptions) ([]domain.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	docs := e.findLocked(coll, filter)
	if opts != nil {
		if opts.Offset > 0 {
			if opts.Offset >= len(docs) {
				docs = nil
			} else {
				docs = docs[opts.Offset:]
			}
		}
		if opts.Limit > 0 && opts.Limit < len(docs) {
			docs = docs[:opts.Limit]
		}
	}

	out := make([]domain.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Copy()
	}
	return out, nil
}

// FindStream yields copies of matching documents over a channel. The
// snapshot is taken up front; consumers may cancel via ctx.
func (e *Engine) FindStream(ctx context.Context, coll string, filter map[string]interface{}) (<-chan domain.Document, error) {
	e.mu.RLock()
	docs := e.findLocked(coll, filter)
	snapshot := make([]domain.Document, len(docs))
	for i, doc := range docs {
		snapshot[i] = doc.Copy()
	}
	e.mu.RUnlock()

	out := make(chan domain.Document, 100)
	go func() {
		defer close(out)
		for _, doc := range snapshot {
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ReplaceOne replaces the first matching document (by _id order) and returns
// the matched count.
func (e *Engine) ReplaceOne(ctx context.Context, coll string, filter map[string]interface{}, doc domain.Document) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	matches := e.findLocked(coll, filter)
	if len(matches) == 0 {
		return 0, nil
	}
	old := matches[0]
	id, _ := old["_id"].(string)

	replacement := doc.Copy()
	replacement["_id"] = id
	for _, idx := range e.indexes[coll] {
		idx.Remove(id, old)
	}
	for _, idx := range e.indexes[coll] {
		if idx.Conflicts(id, replacement) {
			for _, back := range e.indexes[coll] {
				back.Add(id, old)
			}
			return 0, fmt.Errorf("unique index on %s: %w", idx.Field, domain.ErrDuplicateKey)
		}
	}
	e.collections[coll].Documents[id] = replacement
	for _, idx := range e.indexes[coll] {
		idx.Add(id, replacement)
	}
	e.dirty = true
	return 1, e.saveAfterTransaction()
}

// UpdateMany applies an update expression to every matching document and
// returns the modified count.
func (e *Engine) UpdateMany(ctx context.Context, coll string, filter, update map[string]interface{}) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	matches := e.findLocked(coll, filter)
	var modified int64
	for _, doc := range matches {
		id, _ := doc["_id"].(string)
		for _, idx := range e.indexes[coll] {
			idx.Remove(id, doc)
		}
		if err := domain.ApplyUpdate(doc, update); err != nil {
			for _, idx := range e.indexes[coll] {
				idx.Add(id, doc)
			}
			return modified, err
		}
		for _, idx := range e.indexes[coll] {
			idx.Add(id, doc)
		}
		modified++
	}
	if modified > 0 {
		e.dirty = true
		return modified, e.saveAfterTransaction()
	}
	return modified, nil
}

// DeleteMany removes every matching document and returns the deleted count.
func (e *Engine) DeleteMany(ctx context.Context, coll string, filter map[string]interface{}) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, exists := e.collections[coll]
	if !exists {
		return 0, nil
	}
	matches := e.findLocked(coll, filter)
	for _, doc := range matches {
		id, _ := doc["_id"].(string)
		for _, idx := range e.indexes[coll] {
			idx.Remove(id, doc)
		}
		delete(c.Documents, id)
	}
	if len(matches) > 0 {
		e.dirty = true
		return int64(len(matches)), e.saveAfterTransaction()
	}
	return 0, nil
}

// Count returns the number of matching documents.
func (e *Engine) Count(ctx context.Context, coll string, filter map[string]interface{}) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int64(len(e.findLocked(coll, filter))), nil
}

// EnsureIndex records an index definition and builds an inverted index for
// single-field definitions. Creating the same index twice is a no-op.
func (e *Engine) EnsureIndex(ctx context.Context, coll string, def domain.IndexDef) error {
	if len(def.Keys) == 0 {
		return fmt.Errorf("index definition requires at least one key")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(def.Keys) == 1 {
		field := def.Keys[0].Field
		if e.indexes[coll] == nil {
			e.indexes[coll] = make(map[string]*Index)
		}
		if _, exists := e.indexes[coll][field]; !exists {
			idx := NewIndex(field, def.Unique)
			if c, ok := e.collections[coll]; ok {
				for id, doc := range c.Documents {
					idx.Add(id, doc)
				}
			}
			e.indexes[coll][field] = idx
		}
	}
	e.indexDefs[coll] = append(e.indexDefs[coll], def)
	e.dirty = true
	return nil
}

// findLocked returns live references to matching documents in _id order.
// Callers must hold at least a read lock and must copy before releasing it.
func (e *Engine) findLocked(coll string, filter map[string]interface{}) []domain.Document {
	c, exists := e.collections[coll]
	if !exists {
		return nil
	}

	var docs []domain.Document
	if candidateIDs, useIndex := e.optimizeWithIndexes(coll, filter); useIndex {
		for _, id := range candidateIDs {
			if doc, ok := c.Documents[id]; ok {
				if MatchesFilter(doc, filter) {
					docs = append(docs, doc)
				}
			}
		}
	} else {
		for _, doc := range c.Documents {
			if len(filter) == 0 || MatchesFilter(doc, filter) {
				docs = append(docs, doc)
			}
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		idI, _ := docs[i]["_id"].(string)
		idJ, _ := docs[j]["_id"].(string)
		return idI < idJ
	})
	return docs
}

// optimizeWithIndexes attempts to use available indexes to narrow the
// candidate set. Only top-level equality predicates qualify; everything else
// falls back to a full scan.
func (e *Engine) optimizeWithIndexes(coll string, filter map[string]interface{}) ([]string, bool) {
	var indexResults [][]string
	for field, expected := range filter {
		if strings.HasPrefix(field, "$") {
			continue
		}
		if ops, ok := domain.AsMap(expected); ok && hasOperator(ops) {
			continue
		}
		if idx, exists := e.indexes[coll][field]; exists {
			if ids, ok := idx.Query(expected); ok {
				indexResults = append(indexResults, ids)
			}
		}
	}
	if len(indexResults) == 0 {
		return nil, false
	}
	if len(indexResults) > 1 {
		return IntersectStringSlices(indexResults...), true
	}
	return indexResults[0], true
}

func (e *Engine) getOrCreateCollection(coll string) *domain.Collection {
	c, exists := e.collections[coll]
	if !exists {
		c = domain.NewCollection(coll)
		e.collections[coll] = c
	}
	return c
}
