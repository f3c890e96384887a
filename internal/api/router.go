package api

import (
	"context"
	"strconv"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/issuetracker/issues-api/docs"
	"github.com/issuetracker/issues-api/internal/api/handler"
	"github.com/issuetracker/issues-api/internal/api/middleware"
	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

// multipartOverhead is headroom for form boundaries on top of the file limit.
const multipartOverhead = 1 << 20

// AuthDeps is what the router needs from the credential authority.
type AuthDeps interface {
	ports.AuthService
	ports.Authenticator
}

// Deps are the collaborators wired into the HTTP layer.
type Deps struct {
	Auth   AuthDeps
	Issues ports.IssueService
	Files  ports.FileStore
	Health *handler.HealthDependenciesHandler
	Log    zerolog.Logger

	LoginRPS       float64
	LoginBurst     int
	UploadMaxBytes int64

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
// ctx bounds background work owned by middleware, such as limiter cleanup.
func NewRouter(ctx context.Context, d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Pre(echomiddleware.RemoveTrailingSlash())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "issues",
		Subsystem:  "http",
		Registerer: d.Registerer,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	issueHandler := handler.NewIssueHandler(d.Issues)
	fileHandler := handler.NewFileHandler(d.Files, d.Log)
	healthHandler := handler.NewHealthHandler()

	authRequired := middleware.Auth(d.Auth)
	loginLimit := middleware.LoginRateLimit(ctx, d.LoginRPS, d.LoginBurst, d.Log)

	// --- Auth routes ---
	e.POST("/token", authHandler.Token, loginLimit)
	e.POST("/auth/login", authHandler.Login, loginLimit)
	e.POST("/auth/logout", authHandler.Logout, authRequired)

	// --- Users ---
	e.POST("/users", authHandler.Register, middleware.OptionalAuth(d.Auth))
	e.GET("/users/me", authHandler.Me, authRequired)

	// --- Issues ---
	issues := e.Group("/issues", authRequired)
	issues.POST("", issueHandler.Create)
	issues.GET("", issueHandler.List)
	issues.GET("/:id", issueHandler.Get)
	issues.PUT("/:id", issueHandler.Update, middleware.RBAC(domain.RoleAdmin, domain.RoleMaintainer))
	issues.DELETE("/:id", issueHandler.Delete, middleware.RBAC(domain.RoleAdmin))

	// --- Attachments ---
	uploadLimit := echomiddleware.BodyLimit(strconv.FormatInt(d.UploadMaxBytes+multipartOverhead, 10))
	e.POST("/upload", fileHandler.Upload, authRequired, uploadLimit)
	e.GET("/files/:filename", fileHandler.Download)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	if d.Health != nil {
		e.GET("/health/ready", d.Health.Readiness)
		e.GET("/health/detailed", d.Health.Detailed)
	}

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one structured line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= 500:
				ev = log.Error().Err(v.Error)
			case v.Error != nil:
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
