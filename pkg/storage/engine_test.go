package storage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/storage"
)

func TestEngineInsertAndFind(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "name": "alice"}))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u2", "name": "bob"}))

	docs, err := e.Find(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0]["_id"])

	all, err := e.Find(ctx, "users", nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEngineInsertRequiresID(t *testing.T) {
	e := storage.NewEngine()
	err := e.Insert(context.Background(), "users", domain.Document{"name": "noid"})
	assert.Error(t, err)
}

func TestEngineInsertDuplicateID(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1"}))
	err := e.Insert(ctx, "users", domain.Document{"_id": "u1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestEngineFindReturnsCopies(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "name": "alice"}))

	docs, err := e.Find(ctx, "users", nil, nil)
	require.NoError(t, err)
	docs[0]["name"] = "mutated"

	again, err := e.Find(ctx, "users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", again[0]["name"])
}

func TestEngineFindLimitOffset(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Insert(ctx, "items", domain.Document{"_id": fmt.Sprintf("i%d", i)}))
	}

	docs, err := e.Find(ctx, "items", nil, &domain.FindOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	// Results are ordered by _id.
	assert.Equal(t, "i1", docs[0]["_id"])
	assert.Equal(t, "i2", docs[1]["_id"])

	docs, err = e.Find(ctx, "items", nil, &domain.FindOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngineFindStream(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Insert(ctx, "items", domain.Document{"_id": fmt.Sprintf("i%d", i)}))
	}

	ch, err := e.FindStream(ctx, "items", nil)
	require.NoError(t, err)
	var ids []string
	for doc := range ch {
		ids = append(ids, doc["_id"].(string))
	}
	assert.Equal(t, []string{"i0", "i1", "i2"}, ids)
}

func TestEngineReplaceOne(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "name": "alice", "v": int64(1)}))

	matched, err := e.ReplaceOne(ctx, "users",
		map[string]interface{}{"_id": "u1", "v": int64(1)},
		domain.Document{"name": "alicia", "v": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	doc, err := e.Find(ctx, "users", map[string]interface{}{"_id": "u1"}, nil)
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, "alicia", doc[0]["name"])
	assert.Equal(t, int64(2), doc[0]["v"])

	// Stale filter matches nothing.
	matched, err = e.ReplaceOne(ctx, "users",
		map[string]interface{}{"_id": "u1", "v": int64(1)},
		domain.Document{"name": "x"})
	require.NoError(t, err)
	assert.Zero(t, matched)
}

func TestEngineUpdateMany(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "group": "a", "score": float64(1)}))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u2", "group": "a", "score": float64(2)}))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u3", "group": "b", "score": float64(3)}))

	modified, err := e.UpdateMany(ctx, "users",
		map[string]interface{}{"group": "a"},
		map[string]interface{}{"$inc": map[string]interface{}{"score": float64(10)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	docs, err := e.Find(ctx, "users", map[string]interface{}{"group": "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(11), docs[0]["score"])
	assert.Equal(t, float64(12), docs[1]["score"])
}

func TestEngineDeleteManyAndCount(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "group": "a"}))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u2", "group": "b"}))

	deleted, err := e.DeleteMany(ctx, "users", map[string]interface{}{"group": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := e.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngineUniqueIndex(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	def := domain.IndexDef{Keys: []domain.IndexKey{{Field: "email", Type: 1}}, Unique: true}
	require.NoError(t, e.EnsureIndex(ctx, "users", def))

	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "email": "a@x"}))
	err := e.Insert(ctx, "users", domain.Document{"_id": "u2", "email": "a@x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	// Replacing into a conflicting value rolls back cleanly.
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u2", "email": "b@x"}))
	_, err = e.ReplaceOne(ctx, "users",
		map[string]interface{}{"_id": "u2"},
		domain.Document{"email": "a@x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	docs, err := e.Find(ctx, "users", map[string]interface{}{"email": "b@x"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u2", docs[0]["_id"])
}

func TestEngineIndexedLookupMultikey(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	def := domain.IndexDef{Keys: []domain.IndexKey{{Field: "tuples", Type: 1}}}
	require.NoError(t, e.EnsureIndex(ctx, "orders", def))

	require.NoError(t, e.Insert(ctx, "orders", domain.Document{"_id": "o1", "tuples": []string{"aa", "bb"}}))
	require.NoError(t, e.Insert(ctx, "orders", domain.Document{"_id": "o2", "tuples": []string{"cc"}}))

	docs, err := e.Find(ctx, "orders", map[string]interface{}{"tuples": "bb"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "o1", docs[0]["_id"])
}

func TestEngineEnsureIndexBackfills(t *testing.T) {
	e := storage.NewEngine()
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1", "email": "a@x"}))

	def := domain.IndexDef{Keys: []domain.IndexKey{{Field: "email", Type: 1}}}
	require.NoError(t, e.EnsureIndex(ctx, "users", def))

	docs, err := e.Find(ctx, "users", map[string]interface{}{"email": "a@x"}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
