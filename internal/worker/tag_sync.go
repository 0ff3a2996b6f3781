// Package worker runs the scheduled background jobs: the periodic label
// synchronization sweep and the weekly snapshot run. Each job takes a
// distributed lock so only one instance executes at a time.
package worker

import (
	"context"
	"time"

	"github.com/ignite/crm-tag-sync/internal/config"
	"github.com/ignite/crm-tag-sync/internal/pkg/distlock"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
	syncsvc "github.com/ignite/crm-tag-sync/internal/service/sync"
)

const tagSyncLockKey = "tagsync:worker:sync"

// TagSyncWorker periodically re-evaluates and synchronizes every subject
// with an active enrollment.
type TagSyncWorker struct {
	cfg      config.SyncConfig
	syncSvc  *syncsvc.Service
	subjects monitor.SubjectRepository
	lock     distlock.DistLock

	sleep func(time.Duration)
}

// NewTagSyncWorker creates the periodic sync worker. lock may be built
// from Redis or Postgres via distlock.NewLock.
func NewTagSyncWorker(cfg config.SyncConfig, syncSvc *syncsvc.Service, subjects monitor.SubjectRepository, lock distlock.DistLock) *TagSyncWorker {
	return &TagSyncWorker{
		cfg:      cfg,
		syncSvc:  syncSvc,
		subjects: subjects,
		lock:     lock,
		sleep:    time.Sleep,
	}
}

// Start begins the sync loop. It blocks until ctx is cancelled.
func (w *TagSyncWorker) Start(ctx context.Context) {
	if !w.cfg.Enabled {
		logger.Info("tag sync worker disabled")
		return
	}
	interval := time.Duration(w.cfg.IntervalMinutes) * time.Minute
	logger.Info("tag sync worker starting",
		"interval", interval.String(), "batch_size", w.cfg.BatchSize)

	// Run once immediately on start
	w.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("tag sync worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *TagSyncWorker) runOnce(ctx context.Context) {
	acquired, err := w.lock.Acquire(ctx)
	if err != nil {
		logger.Error("sync lock acquire failed", "error", err.Error())
		return
	}
	if !acquired {
		logger.Info("sync already running elsewhere, skipping cycle")
		return
	}
	defer w.lock.Release(ctx)

	start := time.Now()
	targets, err := w.subjects.ListWithActiveEnrollments(ctx)
	if err != nil {
		logger.Error("sync sweep failed to list subjects", "error", err.Error())
		return
	}

	var synced, errored int
	delay := time.Duration(w.cfg.BatchDelayMillis) * time.Millisecond
	for i, subj := range targets {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && i%w.cfg.BatchSize == 0 {
			w.sleep(delay)
		}
		if _, err := w.syncSvc.Sync(ctx, subj.ID, false); err != nil {
			errored++
			logger.Error("subject sync failed", "subject", subj.ID, "error", err.Error())
			continue
		}
		synced++
	}

	logger.Info("sync sweep completed",
		"subjects", len(targets), "synced", synced, "errors", errored,
		"duration", time.Since(start).Round(time.Millisecond).String())
}

// SyncLockKey is the distributed lock key for the periodic sync sweep.
func SyncLockKey() string { return tagSyncLockKey }
