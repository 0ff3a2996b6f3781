package worker

import (
	"context"
	"time"

	"github.com/ignite/crm-tag-sync/internal/config"
	"github.com/ignite/crm-tag-sync/internal/pkg/distlock"
	"github.com/ignite/crm-tag-sync/internal/pkg/isoweek"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
)

const weeklyMonitorLockKey = "tagsync:worker:weekly-monitor"

// checkInterval is how often the worker wakes up to see whether this
// week's run still needs to happen.
const checkInterval = time.Hour

// WeeklyMonitorWorker triggers the snapshot run once per ISO week. The
// run itself is idempotent, so waking up repeatedly in the same week is
// harmless; the notification uniqueness key prevents duplicates.
type WeeklyMonitorWorker struct {
	cfg        config.MonitoringConfig
	monitorSvc *monitor.Service
	lock       distlock.DistLock

	lastWeek int
	lastYear int
	now      func() time.Time
}

// NewWeeklyMonitorWorker creates the weekly monitor worker.
func NewWeeklyMonitorWorker(cfg config.MonitoringConfig, monitorSvc *monitor.Service, lock distlock.DistLock) *WeeklyMonitorWorker {
	return &WeeklyMonitorWorker{
		cfg:        cfg,
		monitorSvc: monitorSvc,
		lock:       lock,
		now:        time.Now,
	}
}

// Start begins the monitor loop. It blocks until ctx is cancelled.
func (w *WeeklyMonitorWorker) Start(ctx context.Context) {
	if !w.cfg.Enabled {
		logger.Info("weekly monitor worker disabled")
		return
	}
	logger.Info("weekly monitor worker starting", "scope", w.cfg.Scope)

	w.maybeRun(ctx)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("weekly monitor worker stopping")
			return
		case <-ticker.C:
			w.maybeRun(ctx)
		}
	}
}

func (w *WeeklyMonitorWorker) maybeRun(ctx context.Context) {
	now := w.now()
	week, year := isoweek.Of(now)
	if week == w.lastWeek && year == w.lastYear {
		return
	}
	if !w.scheduleReached(now) {
		return
	}

	acquired, err := w.lock.Acquire(ctx)
	if err != nil {
		logger.Error("monitor lock acquire failed", "error", err.Error())
		return
	}
	if !acquired {
		logger.Info("weekly monitor running elsewhere, skipping")
		return
	}
	defer w.lock.Release(ctx)

	result, err := w.monitorSvc.Run(ctx, w.runConfig())
	if err != nil {
		logger.Error("weekly monitor run failed", "error", err.Error())
		return
	}
	if result.Success {
		w.lastWeek, w.lastYear = week, year
	}
}

// scheduleReached reports whether the configured weekday/hour has passed
// within the current ISO week, so a worker that was down on the scheduled
// day still catches up later in the week.
func (w *WeeklyMonitorWorker) scheduleReached(now time.Time) bool {
	// ISO weeks start on Monday.
	pos := (int(now.Weekday()) + 6) % 7
	schedPos := (w.cfg.RunWeekday + 6) % 7
	if pos != schedPos {
		return pos > schedPos
	}
	return now.Hour() >= w.cfg.RunHour
}

func (w *WeeklyMonitorWorker) runConfig() monitor.Config {
	return monitor.Config{
		Enabled:    w.cfg.Enabled,
		Scope:      monitor.Scope(w.cfg.Scope),
		BatchSize:  w.cfg.BatchSize,
		BatchDelay: time.Duration(w.cfg.BatchDelayMillis) * time.Millisecond,
		Retention:  time.Duration(w.cfg.RetentionDays) * 24 * time.Hour,
	}
}

// MonitorLockKey is the distributed lock key for the weekly run.
func MonitorLockKey() string { return weeklyMonitorLockKey }
