package ports

import (
	"context"
	"time"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// StatsRepository persists daily status snapshots.
type StatsRepository interface {
	ExistsForDay(ctx context.Context, day time.Time) (bool, error)
	InsertMany(ctx context.Context, stats []*domain.DailyStats) error
}

// GaugeRecorder publishes point-in-time issue counts.
type GaugeRecorder interface {
	SetOpenIssuesBySeverity(counts map[domain.Severity]int64)
	SetIssuesByStatus(counts map[domain.IssueStatus]int64)
}

// AggregationResult reports what a daily aggregation run did.
type AggregationResult struct {
	Day          time.Time
	Skipped      bool
	StatsCreated int
}

// StatsService implements the periodic reporting jobs.
type StatsService interface {
	AggregateDailyStats(ctx context.Context) (*AggregationResult, error)
	RefreshIssueMetrics(ctx context.Context) error
	CheckCriticalIssues(ctx context.Context) (int, error)
}
