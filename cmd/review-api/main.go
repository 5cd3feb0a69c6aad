package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/manuscript-review/api/swagger"
	"github.com/noah-isme/manuscript-review/internal/handler"
	internalmiddleware "github.com/noah-isme/manuscript-review/internal/middleware"
	"github.com/noah-isme/manuscript-review/internal/repository"
	"github.com/noah-isme/manuscript-review/internal/service"
	"github.com/noah-isme/manuscript-review/pkg/cache"
	"github.com/noah-isme/manuscript-review/pkg/config"
	"github.com/noah-isme/manuscript-review/pkg/database"
	"github.com/noah-isme/manuscript-review/pkg/export"
	"github.com/noah-isme/manuscript-review/pkg/jobs"
	"github.com/noah-isme/manuscript-review/pkg/logger"
	corsmiddleware "github.com/noah-isme/manuscript-review/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/manuscript-review/pkg/middleware/requestid"
)

// @title Manuscript Review API
// @version 0.1.0
// @description Document intake, review workflow and offline-first reconciliation
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to migrate schema", "error", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without status cache and event relay", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.StatusCache.TTL, logr, cfg.StatusCache.Enabled && redisClient != nil)

	workflow := service.NewStatusWorkflow()
	validationSvc := service.NewValidationService(validator.New(), cfg.Upload.MaxFileSizeBytes, cfg.Upload.AllowedMIMEs)
	exporter := service.NewHistoryExportService(workflow, export.NewCSVExporter(), nil)
	docRepo := repository.NewDocumentRepository(db)
	documentSvc := service.NewDocumentService(docRepo, workflow, validationSvc, service.DocumentServiceConfig{
		Cache:    cacheSvc,
		CacheTTL: cfg.StatusCache.TTL,
		Exporter: exporter,
		Metrics:  metricsSvc,
		Logger:   logr,
	})

	authority := service.NewHTTPAuthority(cfg.Sync.RemoteBaseURL, cfg.Sync.RemoteTimeout, metricsSvc)
	bus := service.NewNotificationBus(logr)
	coordinator := service.NewSyncCoordinator(docRepo, authority, bus, logr,
		service.WithInitialOnline(cfg.Sync.Enabled && cfg.Sync.StartOnline),
		service.WithSyncMetrics(metricsSvc),
	)
	documentSvc.WatchSyncEvents(coordinator.Bus())
	attachEventRelay(cfg, redisClient, bus, logr)

	syncQueue := jobs.NewQueue("sync", func(jobCtx context.Context, _ jobs.Job) error {
		_, err := coordinator.AttemptSync(jobCtx)
		return err
	}, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Sync.QueueRetries,
		Logger:     logr,
	})
	syncQueue.Start(ctx)
	defer syncQueue.Stop()

	reporter := startConnectivity(ctx, cfg, coordinator, metricsSvc, logr)
	if coordinator.CheckAvailability().Online {
		// Catch up on changes made while the process was down.
		if _, err := syncQueue.Enqueue(jobs.Job{Key: handler.SyncJobKey, Type: handler.SyncJobKey}); err != nil {
			logr.Sugar().Warnw("failed to queue startup sync", "error", err)
		}
	}

	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	documentHandler := handler.NewDocumentHandler(documentSvc, cfg.Upload.MaxFileSizeBytes)
	workflowHandler := handler.NewWorkflowHandler(workflow)
	var syncReporter handler.ConnectivityReporter
	if reporter != nil {
		syncReporter = reporter
	}
	var syncOpts []handler.SyncHandlerOption
	if !cfg.Sync.Enabled {
		syncOpts = append(syncOpts, handler.WithReportingDisabled("sync is disabled, connectivity reports are ignored"))
	}
	syncHandler := handler.NewSyncHandler(coordinator, syncQueue, syncReporter, metricsSvc, syncOpts...)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/documents", documentHandler.Upload)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/:id", documentHandler.Get)
		api.PATCH("/documents/:id", documentHandler.Update)
		api.DELETE("/documents/:id", documentHandler.Delete)
		api.GET("/documents/:id/status", documentHandler.GetStatus)
		api.POST("/documents/:id/status", documentHandler.ChangeStatus)
		api.GET("/documents/:id/history", documentHandler.History)
		api.GET("/documents/:id/history/export", documentHandler.ExportHistory)
		api.GET("/statuses", documentHandler.ListStatuses)

		api.GET("/workflow/statuses", workflowHandler.List)
		api.GET("/workflow/statuses/:status", workflowHandler.Get)

		api.GET("/connectivity", syncHandler.Status)
		api.POST("/connectivity", syncHandler.ReportConnectivity)
		api.POST("/sync", syncHandler.Trigger)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// startConnectivity wires the coordinator to a health probe when a URL is
// configured and to a manually driven source otherwise. The manual source is
// returned so the API can report changes into it.
func startConnectivity(ctx context.Context, cfg *config.Config, coordinator *service.SyncCoordinator, metrics *service.MetricsService, logr *zap.Logger) *service.ManualConnectivity {
	if !cfg.Sync.Enabled {
		logr.Sugar().Infow("sync disabled, documents stay local")
		return nil
	}
	if cfg.Sync.HealthURL != "" {
		probe := service.NewHealthProbe(cfg.Sync.HealthURL, cfg.Sync.ProbeInterval, cfg.Sync.ProbeTimeout, cfg.Sync.StartOnline, logr, metrics)
		go probe.Start(ctx)
		go coordinator.Run(ctx, probe)
		return nil
	}
	manual := service.NewManualConnectivity(cfg.Sync.StartOnline)
	go coordinator.Run(ctx, manual)
	return manual
}

func attachEventRelay(cfg *config.Config, client *redis.Client, bus *service.NotificationBus, logr *zap.Logger) {
	if !cfg.EventRelay.Enabled {
		return
	}
	if client == nil {
		logr.Sugar().Warnw("event relay enabled without redis, skipping")
		return
	}
	publisher := repository.NewEventPublisher(client, cfg.EventRelay.Channel)
	service.NewEventRelay(publisher, 0, logr).Attach(bus)
	logr.Sugar().Infow("event relay attached", "channel", publisher.Channel())
}
