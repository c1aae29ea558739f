// Package model wires a schema and its composite index registry to a
// document store: normalization and projection on the write path, query
// rewriting on the read path, and optimistic-concurrency saves.
package model

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/mapindex"
	"github.com/mapdexdb/mapdex/pkg/schema"
)

// VersionField is the bookkeeping field carrying a document's
// optimistic-concurrency version. It stays on documents returned by Find so
// a later Save can detect conflicts.
const VersionField = "_v"

// IndexSpec is a user-facing index declaration: paths mapped to index type
// tokens, plus options.
type IndexSpec struct {
	Keys    map[string]interface{}
	Options mapindex.Options
}

// Model is a named collection bound to a schema and its index registry.
type Model struct {
	store     domain.Store
	name      string
	schema    *schema.Schema
	registry  *mapindex.Registry
	projector *mapindex.Projector
	rewriter  *mapindex.Rewriter
}

// New builds a model: auto-discovers schema-flagged indexes, applies the
// explicit index specs, freezes the registry and ensures the store indexes.
// Configuration errors (cross-map compound specs, non-exact-match index
// types on map paths) surface here and are fatal to model setup.
func New(ctx context.Context, store domain.Store, name string, sch *schema.Schema, specs ...IndexSpec) (*Model, error) {
	registry := mapindex.NewRegistry(sch)
	if err := registry.AutoDiscover(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	for _, spec := range specs {
		if err := registry.Declare(spec.Keys, spec.Options); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
	}
	registry.Freeze()

	m := &Model{
		store:     store,
		name:      name,
		schema:    sch,
		registry:  registry,
		projector: mapindex.NewProjector(registry),
		rewriter:  mapindex.NewRewriter(registry),
	}
	for _, def := range registry.StoreIndexes() {
		if err := store.EnsureIndex(ctx, name, def); err != nil {
			return nil, fmt.Errorf("model %s: failed to ensure index: %w", name, err)
		}
	}
	return m, nil
}

// Name returns the model's collection name.
func (m *Model) Name() string {
	return m.name
}

// Registry exposes the model's index registry.
func (m *Model) Registry() *mapindex.Registry {
	return m.registry
}

// Insert normalizes, projects and writes a document, assigning an _id when
// absent. The document is mutated in place. Returns the document's _id.
func (m *Model) Insert(ctx context.Context, doc domain.Document) (string, error) {
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		doc["_id"] = id
	}
	m.schema.Normalize(doc)
	if err := m.projector.Project(doc); err != nil {
		return "", fmt.Errorf("failed to project document: %w", err)
	}
	doc[VersionField] = int64(1)
	if err := m.store.Insert(ctx, m.name, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Find rewrites the filter against the declared composite indexes and
// returns matching documents with synthetic fields stripped. The caller's
// filter is never mutated.
func (m *Model) Find(ctx context.Context, filter map[string]interface{}, opts *domain.FindOptions) ([]domain.Document, error) {
	docs, err := m.store.Find(ctx, m.name, m.rewriteCopy(filter), opts)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		m.strip(doc)
	}
	return docs, nil
}

// FindOne returns the first match or domain.ErrNotFound.
func (m *Model) FindOne(ctx context.Context, filter map[string]interface{}) (domain.Document, error) {
	docs, err := m.Find(ctx, filter, &domain.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs[0], nil
}

// FindStream streams matching documents, synthetic fields stripped.
func (m *Model) FindStream(ctx context.Context, filter map[string]interface{}) (<-chan domain.Document, error) {
	stream, err := m.store.FindStream(ctx, m.name, m.rewriteCopy(filter))
	if err != nil {
		return nil, err
	}
	out := make(chan domain.Document, 100)
	go func() {
		defer close(out)
		for doc := range stream {
			m.strip(doc)
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Count counts matching documents through the rewritten filter.
func (m *Model) Count(ctx context.Context, filter map[string]interface{}) (int64, error) {
	return m.store.Count(ctx, m.name, m.rewriteCopy(filter))
}

// Save performs an optimistic-concurrency full re-save: the document's
// synthetic fields are recomputed from scratch and the replace only matches
// when the stored version still equals the caller's. Returns
// domain.ErrVersionConflict otherwise.
func (m *Model) Save(ctx context.Context, doc domain.Document) error {
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("save requires a document with _id")
	}
	version, ok := versionOf(doc)
	if !ok {
		return fmt.Errorf("save requires a document loaded from the store (missing %s)", VersionField)
	}

	next := doc.Copy()
	m.schema.Normalize(next)
	if err := m.projector.Project(next); err != nil {
		return fmt.Errorf("failed to project document: %w", err)
	}
	next[VersionField] = version + 1

	matched, err := m.store.ReplaceOne(ctx, m.name, map[string]interface{}{
		"_id":        id,
		VersionField: version,
	}, next)
	if err != nil {
		return err
	}
	if matched == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrVersionConflict)
	}
	doc[VersionField] = version + 1
	return nil
}

// Remove deletes every document matching the rewritten filter.
func (m *Model) Remove(ctx context.Context, filter map[string]interface{}) (int64, error) {
	return m.store.DeleteMany(ctx, m.name, m.rewriteCopy(filter))
}

func (m *Model) rewriteCopy(filter map[string]interface{}) map[string]interface{} {
	if filter == nil {
		return map[string]interface{}{}
	}
	return m.rewriter.Rewrite(domain.CopyFilter(filter))
}

// strip removes synthetic index fields from an application-facing document.
// The version field stays: it is the token a later Save compares against.
func (m *Model) strip(doc domain.Document) {
	for _, name := range m.registry.SyntheticNames() {
		delete(doc, name)
	}
}

func versionOf(doc domain.Document) (int64, bool) {
	switch v := doc[VersionField].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
