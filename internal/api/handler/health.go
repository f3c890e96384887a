package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

const serviceName = "issues-tracker-api"

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Liveness handles GET /health.
//
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

// Pinger is implemented by each dependency checked for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RevocationCounter reports how many tokens are currently revoked.
type RevocationCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthDependenciesHandler handles GET /health/ready and GET /health/detailed.
type HealthDependenciesHandler struct {
	deps    map[string]Pinger
	users   ports.UserCounter
	issues  ports.IssueRepository
	gauges  ports.GaugeRecorder
	revoked RevocationCounter
	log     zerolog.Logger
}

func NewHealthDependenciesHandler(
	deps map[string]Pinger,
	users ports.UserCounter,
	issues ports.IssueRepository,
	gauges ports.GaugeRecorder,
	log zerolog.Logger,
) *HealthDependenciesHandler {
	return &HealthDependenciesHandler{deps: deps, users: users, issues: issues, gauges: gauges, log: log}
}

// WithRevocations adds the revoked-token count to the detailed report.
func (h *HealthDependenciesHandler) WithRevocations(c RevocationCounter) *HealthDependenciesHandler {
	h.revoked = c
	return h
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

type healthMetrics struct {
	TotalUsers       int64                        `json:"total_users"`
	TotalIssues      int64                        `json:"total_issues"`
	IssuesBySeverity map[domain.Severity]int64    `json:"issues_by_severity"`
	IssuesByStatus   map[domain.IssueStatus]int64 `json:"issues_by_status"`
	RevokedTokens    int                          `json:"revoked_tokens"`
}

type detailedResponse struct {
	Status  string         `json:"status"`
	Service string         `json:"service"`
	Metrics *healthMetrics `json:"metrics,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Readiness handles GET /health/ready.
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  readinessResponse
// @Failure  503  {object}  readinessResponse
// @Router   /health/ready [get]
func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.deps))
	healthy := true
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}

// Detailed handles GET /health/detailed. It reports store totals and
// refreshes the issue gauges as a side effect.
//
// @Summary  Detailed health with issue totals
// @Tags     health
// @Produce  json
// @Success  200  {object}  detailedResponse
// @Failure  503  {object}  detailedResponse
// @Router   /health/detailed [get]
func (h *HealthDependenciesHandler) Detailed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.collect(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("detailed health check failed")
		return c.JSON(http.StatusServiceUnavailable, detailedResponse{
			Status:  "unhealthy",
			Service: serviceName,
			Error:   "store unavailable",
		})
	}

	if h.gauges != nil {
		h.gauges.SetOpenIssuesBySeverity(m.IssuesBySeverity)
		h.gauges.SetIssuesByStatus(m.IssuesByStatus)
	}
	return c.JSON(http.StatusOK, detailedResponse{Status: "healthy", Service: serviceName, Metrics: m})
}

func (h *HealthDependenciesHandler) collect(ctx context.Context) (*healthMetrics, error) {
	users, err := h.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	total, err := h.issues.Count(ctx)
	if err != nil {
		return nil, err
	}
	bySeverity, err := h.issues.CountOpenBySeverity(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := h.issues.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	m := &healthMetrics{
		TotalUsers:       users,
		TotalIssues:      total,
		IssuesBySeverity: bySeverity,
		IssuesByStatus:   byStatus,
	}
	if h.revoked != nil {
		if m.RevokedTokens, err = h.revoked.Count(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}
