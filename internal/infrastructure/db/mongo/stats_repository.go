package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

const collectionDailyStats = "daily_stats"

// StatsRepository stores the daily per-status snapshots.
type StatsRepository struct {
	col *mongo.Collection
	seq *Sequence
}

func NewStatsRepository(db *mongo.Database, seq *Sequence) *StatsRepository {
	return &StatsRepository{col: db.Collection(collectionDailyStats), seq: seq}
}

// ExistsForDay reports whether any snapshot falls within the UTC day that
// starts at day.
func (r *StatsRepository) ExistsForDay(ctx context.Context, day time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := day.UTC()
	filter := bson.M{"date": bson.M{"$gte": start, "$lt": start.Add(24 * time.Hour)}}
	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *StatsRepository) InsertMany(ctx context.Context, stats []*domain.DailyStats) error {
	if len(stats) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(stats))
	for _, s := range stats {
		id, err := r.seq.Next(ctx, collectionDailyStats)
		if err != nil {
			return err
		}
		s.ID = id
		docs = append(docs, s)
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *StatsRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "date", Value: 1}}})
	return err
}
