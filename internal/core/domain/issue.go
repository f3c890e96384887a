package domain

import "time"

// IssueStatus is the workflow state of an issue.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "OPEN"
	StatusTriaged    IssueStatus = "TRIAGED"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusDone       IssueStatus = "DONE"
)

// IssueStatuses lists every status in workflow order.
var IssueStatuses = []IssueStatus{StatusOpen, StatusTriaged, StatusInProgress, StatusDone}

func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusTriaged, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Severity ranks how urgent an issue is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Issue is a problem report filed by a user.
type Issue struct {
	ID          int64       `json:"id" bson:"_id"`
	Title       string      `json:"title" bson:"title"`
	Description string      `json:"description" bson:"description"`
	FilePath    string      `json:"file_path,omitempty" bson:"file_path,omitempty"`
	Severity    Severity    `json:"severity" bson:"severity"`
	Status      IssueStatus `json:"status" bson:"status"`
	ReporterID  int64       `json:"reporter_id" bson:"reporter_id"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}
