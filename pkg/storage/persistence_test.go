package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapdexdb/mapdex/pkg/domain"
	"github.com/mapdexdb/mapdex/pkg/storage"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data"+storage.FileExtension)

	e := storage.NewEngine()
	require.NoError(t, e.EnsureIndex(ctx, "users", domain.IndexDef{
		Keys: []domain.IndexKey{{Field: "email", Type: 1}}, Unique: true,
	}))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{
		"_id": "u1", "email": "a@x",
		"tuples": []interface{}{"aaa", "bbb"},
	}))
	require.NoError(t, e.Insert(ctx, "orders", domain.Document{"_id": "o1", "total": float64(9)}))
	require.NoError(t, e.SaveToFile(path))

	loaded := storage.NewEngine()
	require.NoError(t, loaded.LoadFromFile(path))

	docs, err := loaded.Find(ctx, "users", map[string]interface{}{"_id": "u1"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a@x", docs[0]["email"])

	n, err := loaded.Count(ctx, "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Index definitions survive the round trip: uniqueness is enforced again.
	err = loaded.Insert(ctx, "users", domain.Document{"_id": "u2", "email": "a@x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestLoadFromMissingFile(t *testing.T) {
	e := storage.NewEngine()
	assert.NoError(t, e.LoadFromFile(filepath.Join(t.TempDir(), "absent"+storage.FileExtension)))
}

func TestLoadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage"+storage.FileExtension)
	require.NoError(t, os.WriteFile(path, []byte("not a data file at all"), 0o644))

	e := storage.NewEngine()
	assert.Error(t, e.LoadFromFile(path))
}

func TestTransactionSavePersistsEveryWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "txn"+storage.FileExtension)

	e := storage.NewEngine(storage.WithDataFile(path), storage.WithTransactionSave(true))
	require.NoError(t, e.Insert(ctx, "users", domain.Document{"_id": "u1"}))

	// No explicit save: the insert itself must have flushed.
	loaded := storage.NewEngine()
	require.NoError(t, loaded.LoadFromFile(path))
	n, err := loaded.Count(ctx, "users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
