package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

// StatsService runs the periodic reporting jobs over the issue store.
type StatsService struct {
	issues ports.IssueRepository
	stats  ports.StatsRepository
	gauges ports.GaugeRecorder
	now    func() time.Time
	log    zerolog.Logger
}

func NewStatsService(issues ports.IssueRepository, stats ports.StatsRepository, gauges ports.GaugeRecorder, log zerolog.Logger) *StatsService {
	return &StatsService{issues: issues, stats: stats, gauges: gauges, now: time.Now, log: log}
}

// AggregateDailyStats stores one row per status with today's issue count.
// It does nothing when today's rows already exist.
func (s *StatsService) AggregateDailyStats(ctx context.Context) (*ports.AggregationResult, error) {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	exists, err := s.stats.ExistsForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily stats: %w", err)
	}
	if exists {
		s.log.Info().Str("day", day.Format(time.DateOnly)).Msg("stats already exist, skipping aggregation")
		return &ports.AggregationResult{Day: day, Skipped: true}, nil
	}

	counts, err := s.issues.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily stats: count: %w", err)
	}

	rows := make([]*domain.DailyStats, 0, len(counts))
	for _, status := range domain.IssueStatuses {
		n, ok := counts[status]
		if !ok {
			continue
		}
		rows = append(rows, &domain.DailyStats{Date: now, Status: status, Count: n})
	}
	if len(rows) > 0 {
		if err := s.stats.InsertMany(ctx, rows); err != nil {
			return nil, fmt.Errorf("aggregate daily stats: insert: %w", err)
		}
	}

	s.log.Info().Str("day", day.Format(time.DateOnly)).Int("stats_created", len(rows)).Msg("daily stats aggregated")
	return &ports.AggregationResult{Day: day, StatsCreated: len(rows)}, nil
}

// RefreshIssueMetrics recomputes the open-by-severity and by-status gauges.
func (s *StatsService) RefreshIssueMetrics(ctx context.Context) error {
	bySeverity, err := s.issues.CountOpenBySeverity(ctx)
	if err != nil {
		return fmt.Errorf("refresh metrics: severity: %w", err)
	}
	byStatus, err := s.issues.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("refresh metrics: status: %w", err)
	}

	s.gauges.SetOpenIssuesBySeverity(bySeverity)
	s.gauges.SetIssuesByStatus(byStatus)
	s.log.Debug().Msg("issue metrics refreshed")
	return nil
}

// CheckCriticalIssues counts CRITICAL issues that are not DONE and warns
// when there are any.
func (s *StatsService) CheckCriticalIssues(ctx context.Context) (int, error) {
	bySeverity, err := s.issues.CountOpenBySeverity(ctx)
	if err != nil {
		return 0, fmt.Errorf("check critical issues: %w", err)
	}
	n := int(bySeverity[domain.SeverityCritical])
	if n > 0 {
		s.log.Warn().Int("critical_open", n).Msg("critical issues are still open")
	}
	return n, nil
}
