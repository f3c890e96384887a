package handler

import (
	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

func toIssueResponse(i *domain.Issue) issueResponse {
	return issueResponse{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		FilePath:    i.FilePath,
		Severity:    i.Severity,
		Status:      i.Status,
		ReporterID:  i.ReporterID,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func toIssueResponses(issues []*domain.Issue) []issueResponse {
	out := make([]issueResponse, 0, len(issues))
	for _, i := range issues {
		out = append(out, toIssueResponse(i))
	}
	return out
}

func toTokenResponse(s *ports.Session) tokenResponse {
	return tokenResponse{
		AccessToken: s.Token,
		TokenType:   s.TokenType,
		ExpiresIn:   int64(s.ExpiresIn.Seconds()),
	}
}

func (r updateIssueRequest) toUpdate() ports.IssueUpdate {
	return ports.IssueUpdate{
		Title:       r.Title,
		Description: r.Description,
		Severity:    r.Severity,
		Status:      r.Status,
		FilePath:    r.FilePath,
	}
}
