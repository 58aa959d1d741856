// Package main is the entry point for the legajos API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/diresa-ti/legajos/internal/api"
	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/auth"
	"github.com/diresa-ti/legajos/internal/backup"
	"github.com/diresa-ti/legajos/internal/config"
	"github.com/diresa-ti/legajos/internal/document"
	"github.com/diresa-ti/legajos/internal/health"
	"github.com/diresa-ti/legajos/internal/middleware"
	"github.com/diresa-ti/legajos/internal/personnel"
	"github.com/diresa-ti/legajos/internal/request"
	"github.com/diresa-ti/legajos/internal/tracing"
	"github.com/diresa-ti/legajos/internal/user"
)

const serviceName = "legajos-api"

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Legajos API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampling,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}
	cancelPing()

	// Token service. The previous secret keeps sessions signed before a key
	// rotation valid until they expire.
	var tokens *auth.TokenService
	if cfg.JWTPreviousSecret != "" {
		tokens = auth.NewTokenServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		tokens = auth.NewTokenService(cfg.JWTSecret)
	}

	// Blob storage for uploaded documents.
	var blobs document.BlobStore
	if cfg.S3Enabled() {
		blobs, err = document.NewS3Store(document.S3Config{
			Bucket:          cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
		})
		if err != nil {
			logger.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("S3 not configured, storing documents in memory")
		blobs = document.NewInMemoryBlobStore()
	}

	// Rate limit state. Redis shares limits across instances; the in-memory
	// store is per process.
	var redisClient *redis.Client
	var limits middleware.RateLimitStore
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limits = middleware.NewRedisRateLimitStore(redisClient)
	} else {
		logger.Warn("Redis not configured, rate limits are per instance")
		limits = middleware.NewInMemoryRateLimitStore()
	}

	// Services. The audit service comes first: every other service records
	// into the bitácora through it.
	broadcaster := audit.NewBroadcaster()
	auditSvc := audit.NewService(audit.NewPostgresRepository(db), logger, broadcaster)
	userSvc := user.NewService(user.NewPostgresRepository(db), &user.SlogCodeSender{Logger: logger}, auditSvc, logger)
	personnelSvc := personnel.NewService(personnel.NewPostgresRepository(db), auditSvc, logger)
	documentSvc := document.NewService(document.NewPostgresRepository(db), blobs, auditSvc, logger,
		int64(cfg.UploadMaxSizeMB)*1024*1024)
	requestSvc := request.NewService(request.NewPostgresRepository(db), auditSvc, logger)

	var archive document.BlobStore
	if cfg.S3Enabled() {
		archive = blobs
	}
	backupSvc := backup.NewService(&backup.PgDumpRunner{Binary: cfg.PgDumpBinary},
		backup.NewPostgresRepository(db), auditSvc, logger,
		cfg.BackupDatabaseName, cfg.BackupDir, archive)

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		metrics.Register, userSvc.Register, auditSvc.Register,
	} {
		if err := register(registry); err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// Readiness checks.
	checks := health.NewRegistry()
	checks.Register("database", health.NewDBChecker(db))
	if redisClient != nil {
		checks.Register("redis", health.NewRedisChecker(redisClient))
	}

	router := api.NewRouter(api.RouterConfig{
		Auth:           api.NewAuthHandlers(userSvc, tokens, auditSvc, logger),
		Personnel:      api.NewPersonnelHandlers(personnelSvc, logger),
		Documents:      api.NewDocumentHandlers(documentSvc, logger),
		Users:          api.NewUserHandlers(userSvc, logger),
		Audit:          api.NewAuditHandlers(auditSvc, broadcaster, logger),
		Requests:       api.NewRequestHandlers(requestSvc, logger),
		Maintenance:    api.NewMaintenanceHandlers(backupSvc, logger),
		Health:         api.NewHealthHandlers(checks),
		Tokens:         tokens,
		RateLimitStore: limits,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Apply middleware: RequestID -> Tracing -> Metrics -> Logging.
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.HTTPMetrics(metrics)(
				middleware.Logging(logger)(router))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
