// Command api serves the issue tracker HTTP API and runs its periodic jobs.
//
//	@title						Issues Tracker API
//	@version					1.0
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/issuetracker/issues-api/internal/api"
	"github.com/issuetracker/issues-api/internal/api/handler"
	"github.com/issuetracker/issues-api/internal/api/metrics"
	"github.com/issuetracker/issues-api/internal/core/auth"
	"github.com/issuetracker/issues-api/internal/core/ports"
	"github.com/issuetracker/issues-api/internal/core/service"
	"github.com/issuetracker/issues-api/internal/infrastructure/config"
	mongodb "github.com/issuetracker/issues-api/internal/infrastructure/db/mongo"
	redisdb "github.com/issuetracker/issues-api/internal/infrastructure/db/redis"
	"github.com/issuetracker/issues-api/internal/infrastructure/queue"
	"github.com/issuetracker/issues-api/internal/infrastructure/storage"
	"github.com/issuetracker/issues-api/pkg/logger"
)

const (
	shutdownTimeout     = 10 * time.Second
	criticalCheckPeriod = 5 * time.Minute
	readHeaderTimeout   = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "issues-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction(), Service: cfg.ServiceName})
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting issues-api")

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  cfg.ServiceName,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	seq := mongodb.NewSequence(db)
	users := mongodb.NewUserRepository(db, seq)
	issues := mongodb.NewIssueRepository(db, seq)
	stats := mongodb.NewStatsRepository(db, seq)
	if err := mongodb.EnsureIndexes(ctx, users, issues, stats); err != nil {
		return err
	}

	files, err := storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.MaxBytes, logger.Named("storage"))
	if err != nil {
		return err
	}

	// --- Core services ---
	hasher, err := auth.NewHasher(cfg.Auth.PasswordScheme, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTAlgorithm)
	if err != nil {
		return err
	}
	recorder := metrics.NewRecorder()
	denylist := redisdb.NewDenylist(rdb)

	authService, err := service.NewAuthService(users, hasher, codec, cfg.Auth.TokenTTL,
		service.WithDenylist(denylist),
		service.WithLoginRecorder(recorder),
		service.WithAuthLogger(logger.Named("auth")),
	)
	if err != nil {
		return err
	}
	issueService := service.NewIssueService(issues, files, recorder, logger.Named("issues"))
	statsService := service.NewStatsService(issues, stats, recorder, logger.Named("jobs"))

	// --- HTTP ---
	health := handler.NewHealthDependenciesHandler(
		map[string]handler.Pinger{
			"mongodb": handler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
			"redis":   handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		users, issues, recorder, logger.Named("health"),
	).WithRevocations(denylist)

	group, groupCtx := errgroup.WithContext(ctx)

	e := api.NewRouter(groupCtx, api.Deps{
		Auth:           authService,
		Issues:         issueService,
		Files:          files,
		Health:         health,
		Log:            logger.Named("http"),
		LoginRPS:       cfg.Auth.LoginRateLimit,
		LoginBurst:     cfg.Auth.LoginRateBurst,
		UploadMaxBytes: files.MaxBytes(),
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// --- Background jobs ---
	dispatcher := queue.NewDispatcher(cfg.Jobs.Workers, recorder, logger.Named("jobs"))
	dispatcher.Start(groupCtx)
	scheduler := queue.NewScheduler(dispatcher, logger.Named("scheduler"))
	registerJobs(scheduler, statsService, cfg.Jobs.StatsInterval)

	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	dispatcher.Wait()
	log.Info().Msg("issues-api stopped")
	return err
}

func registerJobs(s *queue.Scheduler, stats ports.StatsService, statsInterval time.Duration) {
	s.Every(statsInterval, ports.Job{
		Name: "aggregate_daily_stats",
		Run: func(ctx context.Context) error {
			_, err := stats.AggregateDailyStats(ctx)
			return err
		},
	})
	s.Every(statsInterval, ports.Job{
		Name: "refresh_issue_metrics",
		Run:  stats.RefreshIssueMetrics,
	})
	s.Every(criticalCheckPeriod, ports.Job{
		Name: "critical_issue_alert",
		Run: func(ctx context.Context) error {
			_, err := stats.CheckCriticalIssues(ctx)
			return err
		},
	})
}
