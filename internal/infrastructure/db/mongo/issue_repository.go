package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

const collectionIssues = "issues"

type IssueRepository struct {
	col *mongo.Collection
	seq *Sequence
	now func() time.Time
}

func NewIssueRepository(db *mongo.Database, seq *Sequence) *IssueRepository {
	return &IssueRepository{col: db.Collection(collectionIssues), seq: seq, now: time.Now}
}

// Create inserts a new issue document under a freshly allocated id.
func (r *IssueRepository) Create(ctx context.Context, issue *domain.Issue) (*domain.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.seq.Next(ctx, collectionIssues)
	if err != nil {
		return nil, err
	}
	doc := *issue
	doc.ID = id
	if _, err := r.col.InsertOne(ctx, &doc); err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}
	return &doc, nil
}

func (r *IssueRepository) FindByID(ctx context.Context, id int64) (*domain.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var issue domain.Issue
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&issue); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// List returns issues in id order. A non-zero ReporterID restricts the
// result to that reporter.
func (r *IssueRepository) List(ctx context.Context, f ports.ListIssuesFilter) ([]*domain.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.ReporterID != 0 {
		filter["reporter_id"] = f.ReporterID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(f.Skip)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	issues := []*domain.Issue{}
	if err := cur.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Update sets the non-nil fields and stamps updated_at.
func (r *IssueRepository) Update(ctx context.Context, id int64, u ports.IssueUpdate) (*domain.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": r.now().UTC()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Severity != nil {
		set["severity"] = *u.Severity
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.FilePath != nil {
		set["file_path"] = *u.FilePath
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue domain.Issue
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (r *IssueRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrIssueNotFound
	}
	return nil
}

func (r *IssueRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{})
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (r *IssueRepository) CountByStatus(ctx context.Context) (map[domain.IssueStatus]int64, error) {
	rows, err := r.groupBy(ctx, bson.M{}, "$status")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.IssueStatus]int64, len(rows))
	for _, row := range rows {
		out[domain.IssueStatus(row.Key)] = row.Count
	}
	return out, nil
}

func (r *IssueRepository) CountOpenBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := r.groupBy(ctx, bson.M{"status": bson.M{"$ne": domain.StatusDone}}, "$severity")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Severity]int64, len(rows))
	for _, row := range rows {
		out[domain.Severity(row.Key)] = row.Count
	}
	return out, nil
}

func (r *IssueRepository) groupBy(ctx context.Context, match bson.M, field string) ([]groupCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer cur.Close(ctx)

	var rows []groupCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// EnsureIndexes creates necessary indexes on the issues collection.
func (r *IssueRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "reporter_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "severity", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
