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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/router"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Class timetable generation, review and conflict auditing
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, conflict reports will not be cached", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.ConflictCacheTTL, logr, redisClient != nil)

	publisher := newPublisher(cfg.Events, logr)
	defer publisher.Close() //nolint:errcheck

	eventQueue := jobs.NewQueue("timetable-events", func(ctx context.Context, job jobs.Job) error {
		return publisher.Publish(ctx, job.Payload)
	}, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		Logger:     logr,
	})
	eventQueue.Start(context.Background())

	timetableSvc := service.NewTimetableService(
		repository.NewTimetableRepository(db),
		repository.NewClassRepository(db),
		repository.NewClassSubjectRepository(db),
		repository.NewSubjectRepository(db),
		repository.NewTeacherRepository(db),
		repository.NewTimetableTemplateRepository(db),
		cacheSvc,
		eventQueue,
		metrics,
		nil,
		logr,
		service.TimetableConfig{
			ProposalTTL:          cfg.Scheduler.ProposalTTL,
			ConflictCacheTTL:     cfg.Scheduler.ConflictCacheTTL,
			DefaultBreakfastTime: cfg.Scheduler.DefaultBreakfastTime,
			DefaultLunchTime:     cfg.Scheduler.DefaultLunchTime,
		},
	)
	exportSvc := service.NewExportService(timetableSvc, export.NewCSVExporter(export.WithComma(cfg.Export.CSVDelimiter)), nil, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	engine := router.New(router.Dependencies{
		Config:     cfg,
		Logger:     logr,
		Metrics:    metrics,
		Tokens:     service.NewTokenService(cfg.JWT.Secret),
		Timetables: handler.NewTimetableHandler(timetableSvc, exportSvc),
		Probes:     handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown failed", zap.Error(err))
	}
	eventQueue.Stop(shutdownCtx)
}

func newPublisher(cfg config.EventsConfig, logr *zap.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NewLogPublisher(logr)
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Queue, cfg.PublishTimeout, logr)
	if err != nil {
		logr.Warn("amqp unavailable, timetable events will only be logged", zap.Error(err))
		return events.NewLogPublisher(logr)
	}
	return publisher
}
