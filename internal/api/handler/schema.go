package handler

import (
	"time"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type registerRequest struct {
	Email    string      `json:"email"    validate:"required,email"`
	Password string      `json:"password" validate:"required"`
	Role     domain.Role `json:"role"     validate:"omitempty,oneof=ADMIN MAINTAINER REPORTER"`
}

type userResponse struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// --- Issues ---

type createIssueRequest struct {
	Title       string             `json:"title"       validate:"required,max=200"`
	Description string             `json:"description" validate:"required"`
	Severity    domain.Severity    `json:"severity"    validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status      domain.IssueStatus `json:"status"      validate:"omitempty,oneof=OPEN TRIAGED IN_PROGRESS DONE"`
	FilePath    string             `json:"file_path"`
}

type updateIssueRequest struct {
	Title       *string             `json:"title"       validate:"omitempty,min=1,max=200"`
	Description *string             `json:"description"`
	Severity    *domain.Severity    `json:"severity"    validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status      *domain.IssueStatus `json:"status"      validate:"omitempty,oneof=OPEN TRIAGED IN_PROGRESS DONE"`
	FilePath    *string             `json:"file_path"`
}

type listIssuesQuery struct {
	Skip  int `query:"skip"  validate:"min=0"`
	Limit int `query:"limit" validate:"min=0"`
}

type issueResponse struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	FilePath    string             `json:"file_path,omitempty"`
	Severity    domain.Severity    `json:"severity"`
	Status      domain.IssueStatus `json:"status"`
	ReporterID  int64              `json:"reporter_id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   *time.Time         `json:"updated_at,omitempty"`
}

type deleteResponse struct {
	OK bool `json:"ok"`
}

// --- Files ---

type uploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}
