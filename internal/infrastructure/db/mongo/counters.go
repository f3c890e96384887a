package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionCounters = "counters"

// Sequence hands out increasing integer ids per collection, stored as
// {_id: <name>, seq: <n>} documents.
type Sequence struct {
	col *mongo.Collection
}

func NewSequence(db *mongo.Database) *Sequence {
	return &Sequence{col: db.Collection(collectionCounters)}
}

// Next atomically increments and returns the counter for name. The first
// call for a name returns 1.
func (s *Sequence) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return doc.Seq, nil
}

// Reserve inserts the marker {_id: name} once. It reports false when the
// marker already exists.
func (s *Sequence) Reserve(ctx context.Context, name string) (bool, error) {
	if _, err := s.col.InsertOne(ctx, bson.M{"_id": name}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("reserve %s: %w", name, err)
	}
	return true, nil
}

// Release removes a marker set by Reserve.
func (s *Sequence) Release(ctx context.Context, name string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
