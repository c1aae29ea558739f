package model

import (
	"context"
	"fmt"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// Update routes an update expression per document: when no touched path
// reaches into a map container, the update goes to the store as a direct
// partial update. Otherwise synthetic fields would go stale, so every
// matching document is stream-loaded, mutated in memory and fully re-saved,
// re-running projection. Returns the modified count.
func (m *Model) Update(ctx context.Context, filter, update map[string]interface{}) (int64, error) {
	rewritten := m.rewriteCopy(filter)

	if !m.registry.TouchesMapField(update) {
		return m.store.UpdateMany(ctx, m.name, rewritten, update)
	}

	// The cancel releases the store's producer goroutine when an error cuts
	// the loop short of draining the stream.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := m.store.FindStream(streamCtx, m.name, rewritten)
	if err != nil {
		return 0, err
	}
	var modified int64
	for doc := range stream {
		version := doc[VersionField]
		if err := domain.ApplyUpdate(doc, update); err != nil {
			return modified, fmt.Errorf("failed to apply update: %w", err)
		}
		// A replacement wipes every field except _id; the version token has
		// to survive for the re-save to match the stored document.
		if _, ok := doc[VersionField]; !ok {
			doc[VersionField] = version
		}
		if err := m.Save(ctx, doc); err != nil {
			return modified, err
		}
		modified++
	}
	return modified, nil
}
