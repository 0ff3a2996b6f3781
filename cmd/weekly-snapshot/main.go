// One-shot weekly snapshot run, intended for cron. Exits non-zero when
// the run fails; an unsuccessful-but-clean short circuit (monitoring
// disabled, empty watch list) exits zero.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-tag-sync/internal/alert"
	"github.com/ignite/crm-tag-sync/internal/archive"
	"github.com/ignite/crm-tag-sync/internal/config"
	"github.com/ignite/crm-tag-sync/internal/crm"
	"github.com/ignite/crm-tag-sync/internal/pkg/distlock"
	"github.com/ignite/crm-tag-sync/internal/repository/postgres"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
	"github.com/ignite/crm-tag-sync/internal/worker"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			redisClient = nil
		}
	}

	crmClient := crm.NewClient(cfg.CRM)
	reg := registry.NewService(postgres.NewCriticalLabelRepo(db), postgres.NewNotificationRepo(db))
	subjectRepo := postgres.NewSubjectRepo(db)
	weeklyRepo := postgres.NewWeeklySnapshotRepo(db)

	svc := monitor.NewService(subjectRepo, weeklyRepo, reg, crmClient, crmClient)
	svc.SetAlerter(alert.NewEmailAlerter(cfg.Alerts))
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket != "" {
		runArchive, err := archive.NewS3RunArchive(context.Background(), cfg.Archive.S3Bucket, cfg.Archive.S3Region)
		if err != nil {
			log.Printf("Run archive disabled: %v", err)
		} else {
			svc.SetArchiver(runArchive)
		}
	}

	ctx := context.Background()
	lock := distlock.NewLock(redisClient, db, worker.MonitorLockKey(), time.Hour)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Fatalf("Lock acquire failed: %v", err)
	}
	if !acquired {
		log.Println("Another run is in progress, exiting")
		return
	}
	defer lock.Release(ctx)

	result, err := svc.Run(ctx, monitor.Config{
		Enabled:    cfg.Monitoring.Enabled,
		Scope:      monitor.Scope(cfg.Monitoring.Scope),
		BatchSize:  cfg.Monitoring.BatchSize,
		BatchDelay: time.Duration(cfg.Monitoring.BatchDelayMillis) * time.Millisecond,
		Retention:  time.Duration(cfg.Monitoring.RetentionDays) * 24 * time.Hour,
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	log.Printf("Run result:\n%s", out)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}
