// Package metrics defines and registers all custom Prometheus metrics for the
// issue tracker API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

const namespace = "issues"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - success: "true" or "false"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"success"},
)

// ActiveSessions approximates the number of sessions: incremented on login,
// decremented on logout. Tokens that simply expire are not subtracted.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions issued minus sessions explicitly logged out.",
	},
)

// ── Issue metrics ─────────────────────────────────────────────────────────────

// IssuesCreatedTotal counts newly filed issues.
var IssuesCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issues_created_total",
		Help:      "Total number of issues created, by severity and initial status.",
	},
	[]string{"severity", "status"},
)

// IssueStatusChangesTotal counts status transitions applied by updates.
var IssueStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issue_status_changes_total",
		Help:      "Total number of issue status changes.",
	},
	[]string{"from_status", "to_status"},
)

// OpenIssuesBySeverity is refreshed by the metrics job. "Open" means not DONE.
var OpenIssuesBySeverity = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_issues_by_severity",
		Help:      "Number of issues not yet DONE, by severity.",
	},
	[]string{"severity"},
)

var IssuesByStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "issues_by_status",
		Help:      "Number of issues in each status.",
	},
	[]string{"status"},
)

// ── Job metrics ───────────────────────────────────────────────────────────────

// JobRunsTotal counts background job executions.
// Label:
//   - result: "success" or "error"
var JobRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_runs_total",
		Help:      "Total number of background job runs, by job and result.",
	},
	[]string{"job", "result"},
)

var JobDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of background job runs.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"job"},
)

// Recorder adapts the package metrics to the recorder interfaces consumed by
// the services and the job dispatcher.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (Recorder) RecordLoginAttempt(success bool) {
	LoginAttemptsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		ActiveSessions.Inc()
	}
}

func (Recorder) RecordLogout() {
	ActiveSessions.Dec()
}

func (Recorder) RecordIssueCreated(severity domain.Severity, status domain.IssueStatus) {
	IssuesCreatedTotal.WithLabelValues(string(severity), string(status)).Inc()
}

func (Recorder) RecordStatusChange(from, to domain.IssueStatus) {
	IssueStatusChangesTotal.WithLabelValues(string(from), string(to)).Inc()
}

// SetOpenIssuesBySeverity sets every severity, reporting 0 for those absent
// from counts.
func (Recorder) SetOpenIssuesBySeverity(counts map[domain.Severity]int64) {
	for _, sev := range domain.Severities {
		OpenIssuesBySeverity.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
}

func (Recorder) SetIssuesByStatus(counts map[domain.IssueStatus]int64) {
	for _, st := range domain.IssueStatuses {
		IssuesByStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

func (Recorder) RecordJobRun(job string, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
	JobDuration.WithLabelValues(job).Observe(took.Seconds())
}
