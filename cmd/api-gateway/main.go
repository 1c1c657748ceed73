package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/seating-api/api/swagger"
	"github.com/noah-isme/seating-api/internal/handler"
	"github.com/noah-isme/seating-api/internal/repository"
	"github.com/noah-isme/seating-api/internal/service"
	"github.com/noah-isme/seating-api/pkg/cache"
	"github.com/noah-isme/seating-api/pkg/config"
	"github.com/noah-isme/seating-api/pkg/database"
	"github.com/noah-isme/seating-api/pkg/jobs"
	"github.com/noah-isme/seating-api/pkg/logger"
	"github.com/noah-isme/seating-api/pkg/storage"
)

// @title Seating API
// @version 1.0.0
// @description Classroom seat assignment with front/back preferences and separation pairs
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	if cfg.Database.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
		checks["database"] = db.PingContext
	}

	proposals := newProposalStore(ctx, cfg, metricsSvc, logr, checks)
	seatingCfg := service.SeatingConfig{
		MaxRows:     cfg.Seating.MaxRows,
		MaxCols:     cfg.Seating.MaxCols,
		MaxStudents: cfg.Seating.MaxStudents,
		StepBudget:  cfg.Seating.StepBudget,
		ProposalTTL: cfg.Seating.ProposalTTL,
	}

	deps := routeDeps{
		cfg:     cfg,
		logger:  logr,
		metrics: handler.NewMetricsHandler(metricsSvc, checks),
		tokens: service.NewTokenService(service.TokenConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
			Expiry: cfg.JWT.Expiration,
		}),
		metricsSvc: metricsSvc,
	}

	if db != nil {
		planRepo := repository.NewSeatingPlanRepository(db)
		seatingSvc := service.NewSeatingService(proposals, planRepo, metricsSvc, validate, logr, seatingCfg)
		deps.seating = handler.NewSeatingHandler(seatingSvc)

		exportSvc, queue, err := newExportPipeline(ctx, cfg, db, planRepo, metricsSvc, validate, logr)
		if err != nil {
			logr.Fatal("failed to prepare exports", zap.Error(err))
		}
		defer queue.Stop()
		deps.exports = handler.NewSeatingExportHandler(exportSvc)
	} else {
		logr.Warn("database disabled; saved plans and exports are unavailable")
		deps.seating = handler.NewSeatingHandler(service.NewSeatingService(proposals, nil, metricsSvc, validate, logr, seatingCfg))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auth", cfg.Seating.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newProposalStore keeps proposals in Redis when enabled and reachable,
// otherwise in process memory.
func newProposalStore(ctx context.Context, cfg *config.Config, metricsSvc *service.MetricsService, logr *zap.Logger, checks map[string]handler.ReadinessCheck) service.ProposalStore {
	if !cfg.Seating.ProposalCache {
		return service.NewMemoryProposalStore(cfg.Seating.ProposalTTL)
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable; keeping proposals in memory", zap.Error(err))
		return service.NewMemoryProposalStore(cfg.Seating.ProposalTTL)
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	cacheRepo := repository.NewCacheRepository(client, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Seating.ProposalTTL, logr, true)
	return service.NewCacheProposalStore(cacheSvc, cfg.Seating.ProposalTTL)
}

func newExportPipeline(ctx context.Context, cfg *config.Config, db *sqlx.DB, plans *repository.SeatingPlanRepository, metricsSvc *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.SeatingExportService, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(plans, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	jobRepo := repository.NewExportJobRepository(db)
	worker := service.NewSeatingExportWorker(jobRepo, exporter, metricsSvc, logr)
	queue := jobs.NewQueue("seating-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	queue.Start(ctx)

	exportSvc := service.NewSeatingExportService(jobRepo, plans, queue, exporter, metricsSvc, validate, logr, service.SeatingExportConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)
	return exportSvc, queue, nil
}
