package ports

import (
	"context"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// CreateIssueInput carries the fields of a new issue. The reporter is the caller.
type CreateIssueInput struct {
	Title       string
	Description string
	Severity    domain.Severity
	Status      domain.IssueStatus
	FilePath    string
}

// ListIssuesInput carries paging for the list endpoint.
type ListIssuesInput struct {
	Skip  int
	Limit int
}

// IssueService defines use-case operations for issues. Every call receives
// the resolved caller so reporter scoping can be enforced.
type IssueService interface {
	CreateIssue(ctx context.Context, caller *domain.User, in CreateIssueInput) (*domain.Issue, error)
	GetIssue(ctx context.Context, caller *domain.User, id int64) (*domain.Issue, error)
	ListIssues(ctx context.Context, caller *domain.User, in ListIssuesInput) ([]*domain.Issue, error)
	UpdateIssue(ctx context.Context, caller *domain.User, id int64, update IssueUpdate) (*domain.Issue, error)
	DeleteIssue(ctx context.Context, caller *domain.User, id int64) error
}

// IssueRecorder receives issue lifecycle observations for metrics.
type IssueRecorder interface {
	RecordIssueCreated(severity domain.Severity, status domain.IssueStatus)
	RecordStatusChange(from, to domain.IssueStatus)
}
