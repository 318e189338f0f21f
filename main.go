package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
	"sleuth-ingest/neurostore"
	"sleuth-ingest/services"
	"sleuth-ingest/storage"
)

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logging, err := newLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.ImportRun{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Clients
	lookupClient := httpx.New(cfg.HTTPTimeout, cfg.HTTPMaxRetries, logging)
	// writes are not idempotent, so the storage client never retries
	storeClient := httpx.New(cfg.HTTPTimeout, 1, logging)

	provider, err := services.NewProvider(cfg, logging, lookupClient)
	if err != nil {
		logging.Fatal("Invalid lookup provider", zap.Error(err))
	}
	limit, delay := cfg.LookupLimits()
	logging.Info("Lookup provider loaded",
		zap.String("provider", provider.Name()),
		zap.Int("rate_limit", limit),
		zap.Duration("delay", delay))

	store := neurostore.NewClient(cfg, logging.Named("neurostore"), storeClient)

	var archiver services.Archiver
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiver = storage.NewArchiver(s3Client, cfg, logging.Named("archive"))
		logging.Info("Upload archive enabled", zap.String("bucket", cfg.S3Bucket))
	}

	// Setup Services
	tracker := services.NewRunTracker(db, logging)
	runner := &services.Runner{
		Service:  services.NewImportService(cfg, provider, store, logging),
		Tracker:  tracker,
		Archiver: archiver,
		Logger:   logging,
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Use(apiKeyAuthMiddleware(cfg))

	setupSleuthRoutes(router, logging)
	setupImportRoutes(router, runner, logging)

	// Setup Cron
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled import run cleanup...")
		if _, err := tracker.Prune(context.Background(), cfg.RunRetention); err != nil {
			logging.Error("Cron job failed", zap.Error(err))
		}
	}); err != nil {
		logging.Fatal("Invalid cron schedule", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	<-cronScheduler.Stop().Done()
	logging.Info("Waiting for running imports...")
	runner.Wait()
}
