// Package mongostore adapts a MongoDB database to the domain.Store
// interface. Filters and updates pass through unchanged: rewritten filters
// already use the store's native expression shape, and synthetic tuple
// fields persist as plain string arrays the server indexes as multikey.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// Store implements domain.Store over a mongo database handle.
type Store struct {
	db *mongo.Database
}

// New wraps a mongo database.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, coll string, doc domain.Document) error {
	_, err := s.db.Collection(coll).InsertOne(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}
	return err
}

func (s *Store) Find(ctx context.Context, coll string, filter map[string]interface{}, opts *domain.FindOptions) ([]domain.Document, error) {
	findOpts := options.Find()
	if opts != nil {
		if opts.Limit > 0 {
			findOpts.SetLimit(int64(opts.Limit))
		}
		if opts.Offset > 0 {
			findOpts.SetSkip(int64(opts.Offset))
		}
	}
	cursor, err := s.db.Collection(coll).Find(ctx, bson.M(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []domain.Document
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document(doc))
	}
	return docs, cursor.Err()
}

func (s *Store) FindStream(ctx context.Context, coll string, filter map[string]interface{}) (<-chan domain.Document, error) {
	cursor, err := s.db.Collection(coll).Find(ctx, bson.M(filter))
	if err != nil {
		return nil, err
	}
	out := make(chan domain.Document, 100)
	go func() {
		defer close(out)
		defer cursor.Close(ctx)
		for cursor.Next(ctx) {
			var doc bson.M
			if err := cursor.Decode(&doc); err != nil {
				return
			}
			select {
			case out <- domain.Document(doc):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) ReplaceOne(ctx context.Context, coll string, filter map[string]interface{}, doc domain.Document) (int64, error) {
	res, err := s.db.Collection(coll).ReplaceOne(ctx, bson.M(filter), bson.M(doc))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
		}
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *Store) UpdateMany(ctx context.Context, coll string, filter, update map[string]interface{}) (int64, error) {
	res, err := s.db.Collection(coll).UpdateMany(ctx, bson.M(filter), bson.M(update))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) DeleteMany(ctx context.Context, coll string, filter map[string]interface{}) (int64, error) {
	res, err := s.db.Collection(coll).DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context, coll string, filter map[string]interface{}) (int64, error) {
	return s.db.Collection(coll).CountDocuments(ctx, bson.M(filter))
}

func (s *Store) EnsureIndex(ctx context.Context, coll string, def domain.IndexDef) error {
	keys := make(bson.D, 0, len(def.Keys))
	for _, key := range def.Keys {
		keys = append(keys, bson.E{Key: key.Field, Value: key.Type})
	}
	idxOpts := options.Index()
	if def.Unique {
		idxOpts.SetUnique(true)
	}
	if def.Sparse {
		idxOpts.SetSparse(true)
	}
	_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: idxOpts,
	})
	return err
}
