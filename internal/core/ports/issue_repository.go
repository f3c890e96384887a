package ports

import (
	"context"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// ListIssuesFilter carries paging and the optional reporter scope.
type ListIssuesFilter struct {
	ReporterID int64 // 0 = all reporters
	Skip       int
	Limit      int
}

// IssueUpdate holds the fields to change; nil means leave as is.
type IssueUpdate struct {
	Title       *string
	Description *string
	Severity    *domain.Severity
	Status      *domain.IssueStatus
	FilePath    *string
}

// IssueRepository defines persistence operations for issues.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) (*domain.Issue, error)
	FindByID(ctx context.Context, id int64) (*domain.Issue, error)
	List(ctx context.Context, filter ListIssuesFilter) ([]*domain.Issue, error)
	Update(ctx context.Context, id int64, update IssueUpdate) (*domain.Issue, error)
	Delete(ctx context.Context, id int64) error

	// CountByStatus returns the number of issues per status.
	CountByStatus(ctx context.Context) (map[domain.IssueStatus]int64, error)
	// CountOpenBySeverity counts issues that are not DONE, per severity.
	CountOpenBySeverity(ctx context.Context) (map[domain.Severity]int64, error)
	Count(ctx context.Context) (int64, error)
}
