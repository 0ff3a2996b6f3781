package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-tag-sync/internal/alert"
	"github.com/ignite/crm-tag-sync/internal/api"
	"github.com/ignite/crm-tag-sync/internal/archive"
	"github.com/ignite/crm-tag-sync/internal/config"
	"github.com/ignite/crm-tag-sync/internal/crm"
	"github.com/ignite/crm-tag-sync/internal/pkg/distlock"
	"github.com/ignite/crm-tag-sync/internal/repository/postgres"
	"github.com/ignite/crm-tag-sync/internal/rules"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
	"github.com/ignite/crm-tag-sync/internal/service/protection"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
	syncsvc "github.com/ignite/crm-tag-sync/internal/service/sync"
	"github.com/ignite/crm-tag-sync/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis is optional; locking falls back to PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable (%v), using PG advisory locks", err)
			redisClient = nil
		}
	}

	// Repositories
	subjectRepo := postgres.NewSubjectRepo(db)
	snapshotRepo := postgres.NewLabelSnapshotRepo(db)
	weeklyRepo := postgres.NewWeeklySnapshotRepo(db)
	labelRepo := postgres.NewCriticalLabelRepo(db)
	notifRepo := postgres.NewNotificationRepo(db)

	// CRM client and services
	crmClient := crm.NewClient(cfg.CRM)
	engine := rules.NewEngine(rules.Config{})
	gate := protection.NewService(snapshotRepo, crmClient)
	reg := registry.NewService(labelRepo, notifRepo)
	syncService := syncsvc.NewService(subjectRepo, engine, gate, crmClient)

	monitorService := monitor.NewService(subjectRepo, weeklyRepo, reg, crmClient, crmClient)
	monitorService.SetAlerter(alert.NewEmailAlerter(cfg.Alerts))
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket != "" {
		runArchive, err := archive.NewS3RunArchive(context.Background(), cfg.Archive.S3Bucket, cfg.Archive.S3Region)
		if err != nil {
			log.Printf("Run archive disabled: %v", err)
		} else {
			monitorService.SetArchiver(runArchive)
		}
	}

	monitorCfg := monitor.Config{
		Enabled:    cfg.Monitoring.Enabled,
		Scope:      monitor.Scope(cfg.Monitoring.Scope),
		BatchSize:  cfg.Monitoring.BatchSize,
		BatchDelay: time.Duration(cfg.Monitoring.BatchDelayMillis) * time.Millisecond,
		Retention:  time.Duration(cfg.Monitoring.RetentionDays) * 24 * time.Hour,
	}

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncLock := distlock.NewLock(redisClient, db, worker.SyncLockKey(), 30*time.Minute)
	go worker.NewTagSyncWorker(cfg.Sync, syncService, subjectRepo, syncLock).Start(ctx)

	monitorLock := distlock.NewLock(redisClient, db, worker.MonitorLockKey(), time.Hour)
	go worker.NewWeeklyMonitorWorker(cfg.Monitoring, monitorService, monitorLock).Start(ctx)

	// HTTP server
	handlers := api.NewHandlers(engine, syncService, gate, reg, monitorService, monitorCfg)
	router := api.SetupRoutes(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
