package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/auth"
	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

type IssueService struct {
	repo     ports.IssueRepository
	files    ports.FileStore
	recorder ports.IssueRecorder
	now      func() time.Time
	logger   zerolog.Logger
}

func NewIssueService(repo ports.IssueRepository, files ports.FileStore, recorder ports.IssueRecorder, logger zerolog.Logger) *IssueService {
	return &IssueService{repo: repo, files: files, recorder: recorder, now: time.Now, logger: logger}
}

// CreateIssue files a new issue with the caller as reporter.
func (s *IssueService) CreateIssue(ctx context.Context, caller *domain.User, in ports.CreateIssueInput) (*domain.Issue, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: title and description are required", domain.ErrInvalidInput)
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, in.Severity)
	}
	status := in.Status
	if status == "" {
		status = domain.StatusOpen
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	if err := s.checkAttachment(in.FilePath); err != nil {
		return nil, err
	}

	issue := &domain.Issue{
		Title:       in.Title,
		Description: in.Description,
		FilePath:    in.FilePath,
		Severity:    in.Severity,
		Status:      status,
		ReporterID:  caller.ID,
		CreatedAt:   s.now().UTC(),
	}
	created, err := s.repo.Create(ctx, issue)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create issue")
		return nil, fmt.Errorf("create issue: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordIssueCreated(created.Severity, created.Status)
	}
	s.logger.Info().Int64("issue_id", created.ID).Int64("reporter_id", caller.ID).Msg("issue created")
	return created, nil
}

// GetIssue returns one issue. Reporters may only read their own.
func (s *IssueService) GetIssue(ctx context.Context, caller *domain.User, id int64) (*domain.Issue, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	issue, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAll(caller) && issue.ReporterID != caller.ID {
		return nil, domain.ErrForbidden
	}
	return issue, nil
}

// ListIssues returns a page of issues, scoped to the caller for reporters.
func (s *IssueService) ListIssues(ctx context.Context, caller *domain.User, in ports.ListIssuesInput) ([]*domain.Issue, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	filter := ports.ListIssuesFilter{Skip: in.Skip, Limit: in.Limit}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if !canSeeAll(caller) {
		filter.ReporterID = caller.ID
	}
	return s.repo.List(ctx, filter)
}

// UpdateIssue applies a partial update. Only ADMIN and MAINTAINER may edit.
func (s *IssueService) UpdateIssue(ctx context.Context, caller *domain.User, id int64, update ports.IssueUpdate) (*domain.Issue, error) {
	if !auth.Allows(caller, domain.RoleMaintainer) {
		return nil, domain.ErrForbidden
	}
	if update.Severity != nil && !update.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, *update.Severity)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *update.Status)
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrInvalidInput)
	}
	if update.FilePath != nil {
		if err := s.checkAttachment(*update.FilePath); err != nil {
			return nil, err
		}
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn().Int64("issue_id", id).Msg("issue not found for update")
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}

	if update.Status != nil && *update.Status != current.Status {
		s.logger.Info().
			Int64("issue_id", id).
			Str("from", string(current.Status)).
			Str("to", string(*update.Status)).
			Msg("issue status changed")
		if s.recorder != nil {
			s.recorder.RecordStatusChange(current.Status, *update.Status)
		}
	}
	return updated, nil
}

// DeleteIssue removes an issue. ADMIN only. Attachments are left in place
// since several issues may reference the same upload.
func (s *IssueService) DeleteIssue(ctx context.Context, caller *domain.User, id int64) error {
	if !auth.Allows(caller) {
		return domain.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrIssueNotFound) {
			return err
		}
		return fmt.Errorf("delete issue: %w", err)
	}
	s.logger.Info().Int64("issue_id", id).Int64("deleted_by", caller.ID).Msg("issue deleted")
	return nil
}

// checkAttachment rejects a file_path that does not name a stored upload.
func (s *IssueService) checkAttachment(name string) error {
	if name == "" || s.files == nil {
		return nil
	}
	if _, err := s.files.Path(name); err != nil {
		return fmt.Errorf("%w: attachment %q not found", domain.ErrInvalidInput, name)
	}
	return nil
}

// canSeeAll is false for reporters, who are limited to their own issues.
func canSeeAll(caller *domain.User) bool {
	return auth.Allows(caller, domain.RoleMaintainer)
}
