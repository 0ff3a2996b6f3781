package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/labelfmt"
	"github.com/ignite/crm-tag-sync/internal/pkg/isoweek"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
)

// Scope selects which subjects a run covers.
type Scope string

const (
	// ScopeActiveEnrollments monitors subjects with at least one active
	// enrollment (the default).
	ScopeActiveEnrollments Scope = "active_enrollments"
	// ScopeAllContacts monitors every contact on the CRM list.
	ScopeAllContacts Scope = "all_contacts"
)

// Config controls a monitor run. Loaded once per run and passed in;
// the service holds no mutable configuration state.
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	Scope      Scope         `yaml:"scope"`
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	Retention  time.Duration `yaml:"retention"`
}

func (c Config) withDefaults() Config {
	if c.Scope == "" {
		c.Scope = ScopeActiveEnrollments
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 6 * 30 * 24 * time.Hour
	}
	return c
}

// RunResult reports what one run did.
type RunResult struct {
	Success              bool   `json:"success"`
	Reason               string `json:"reason,omitempty"`
	Week                 int    `json:"week"`
	Year                 int    `json:"year"`
	SubjectsProcessed    int    `json:"subjects_processed"`
	SnapshotsCreated     int    `json:"snapshots_created"`
	ChangesDetected      int    `json:"changes_detected"`
	NotificationsCreated int    `json:"notifications_created"`
	Errors               int    `json:"errors"`
	DurationFormatted    string `json:"duration"`
}

// Service runs the weekly snapshot and change detection.
type Service struct {
	subjects  SubjectRepository
	snapshots SnapshotRepository
	registry  *registry.Service
	source    LabelSource
	directory ContactDirectory
	alerter   Alerter
	archiver  Archiver

	now   func() time.Time
	sleep func(time.Duration)
}

// NewService creates a monitor service. directory may be nil when only
// the active-enrollments scope is used; alerter and archiver are
// optional hooks.
func NewService(subjects SubjectRepository, snapshots SnapshotRepository, reg *registry.Service, source LabelSource, directory ContactDirectory) *Service {
	return &Service{
		subjects:  subjects,
		snapshots: snapshots,
		registry:  reg,
		source:    source,
		directory: directory,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// SetAlerter installs the CRITICAL-tier alert hook.
func (s *Service) SetAlerter(a Alerter) { s.alerter = a }

// SetArchiver installs the run-result archival hook.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

// SetClock overrides the clock and batch pause (useful for testing).
func (s *Service) SetClock(now func() time.Time, sleep func(time.Duration)) {
	s.now = now
	s.sleep = sleep
}

type groupKey struct {
	label      string
	changeType domain.ChangeType
}

type changeGroup struct {
	priority domain.CriticalPriority
	details  []domain.ChangeDetail
}

// Run executes one weekly snapshot pass. A disabled config or an empty
// watch list terminates early with an unsuccessful-but-not-erroneous
// result. A failure to resolve the subject set aborts the run with an
// error. Per-subject failures are counted and never abort the batch.
func (s *Service) Run(ctx context.Context, cfg Config) (RunResult, error) {
	cfg = cfg.withDefaults()
	start := s.now()
	week, year := isoweek.Of(start)
	result := RunResult{Week: week, Year: year}

	finish := func(r RunResult) RunResult {
		r.DurationFormatted = s.now().Sub(start).Round(time.Millisecond).String()
		if s.archiver != nil {
			if err := s.archiver.ArchiveRun(ctx, r); err != nil {
				logger.Warn("run archive failed", "error", err.Error())
			}
		}
		return r
	}

	if !cfg.Enabled {
		result.Reason = "monitoring disabled"
		return finish(result), nil
	}

	criticalSet, err := s.registry.ActiveCriticalSet(ctx)
	if err != nil {
		result.Reason = "failed to load critical labels"
		return finish(result), fmt.Errorf("load critical labels: %w", err)
	}
	if len(criticalSet) == 0 {
		result.Reason = "no active critical labels"
		return finish(result), nil
	}

	targets, err := s.resolveSubjects(ctx, cfg.Scope)
	if err != nil {
		result.Reason = "failed to resolve subject scope"
		return finish(result), fmt.Errorf("resolve subjects (scope %s): %w", cfg.Scope, err)
	}
	logger.Info("weekly monitor run started",
		"scope", string(cfg.Scope), "subjects", len(targets), "week", week, "year", year)

	groups := make(map[groupKey]*changeGroup)

	for batchStart := 0; batchStart < len(targets); batchStart += cfg.BatchSize {
		if batchStart > 0 {
			s.sleep(cfg.BatchDelay)
		}
		batchEnd := batchStart + cfg.BatchSize
		if batchEnd > len(targets) {
			batchEnd = len(targets)
		}
		for _, subj := range targets[batchStart:batchEnd] {
			result.SubjectsProcessed++
			created, changes, err := s.processSubject(ctx, subj, week, year, criticalSet, groups)
			if err != nil {
				result.Errors++
				logger.Error("subject capture failed", "subject", subj.ID, "error", err.Error())
				continue
			}
			if created {
				result.SnapshotsCreated++
			}
			result.ChangesDetected += changes
		}
	}

	result.NotificationsCreated = s.persistGroups(ctx, groups, week, year, &result)

	if pruned, err := s.snapshots.DeleteOlderThan(ctx, start.Add(-cfg.Retention)); err != nil {
		result.Errors++
		logger.Error("snapshot cleanup failed", "error", err.Error())
	} else if pruned > 0 {
		logger.Info("pruned old weekly snapshots", "rows", pruned)
	}

	result.Success = true
	logger.Info("weekly monitor run finished",
		"subjects", result.SubjectsProcessed, "snapshots", result.SnapshotsCreated,
		"changes", result.ChangesDetected, "notifications", result.NotificationsCreated,
		"errors", result.Errors)
	return finish(result), nil
}

// resolveSubjects builds the target list for the configured scope.
func (s *Service) resolveSubjects(ctx context.Context, scope Scope) ([]MonitoredSubject, error) {
	switch scope {
	case ScopeActiveEnrollments:
		return s.subjects.ListWithActiveEnrollments(ctx)
	case ScopeAllContacts:
		if s.directory == nil {
			return nil, fmt.Errorf("all-contacts scope requires a contact directory")
		}
		emails, err := s.directory.ListAllContactEmails(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]MonitoredSubject, 0, len(emails))
		for _, email := range emails {
			if subj, err := s.subjects.GetByEmail(ctx, email); err == nil {
				out = append(out, MonitoredSubject{Subject: *subj})
				continue
			}
			// Contact exists only on the CRM side; monitor it anyway,
			// keyed by its address.
			out = append(out, MonitoredSubject{Subject: domain.Subject{ID: "crm:" + email, Email: email}})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

// processSubject captures one subject's weekly snapshot and feeds any
// critical week-over-week changes into the aggregation groups.
func (s *Service) processSubject(ctx context.Context, subj MonitoredSubject, week, year int, criticalSet map[string]domain.CriticalLabel, groups map[groupKey]*changeGroup) (snapshotCreated bool, changes int, err error) {
	labels, err := s.source.GetContactLabels(ctx, subj.Email)
	if err != nil {
		return false, 0, fmt.Errorf("fetch labels: %w", err)
	}
	_, native := labelfmt.Classify(labels)
	if len(native) == 0 {
		return false, 0, nil
	}

	now := s.now().UTC()
	snap := &domain.WeeklySnapshot{
		SubjectID:    subj.ID,
		Week:         week,
		Year:         year,
		NativeLabels: native,
		CapturedAt:   now,
	}
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		return false, 0, fmt.Errorf("store weekly snapshot: %w", err)
	}

	prevWeek, prevYear := isoweek.Previous(week, year)
	prior, err := s.snapshots.GetForWeek(ctx, subj.ID, prevWeek, prevYear)
	if err == ErrNoSnapshot {
		return true, 0, nil
	}
	if err != nil {
		return true, 0, fmt.Errorf("load prior snapshot: %w", err)
	}

	added := difference(native, prior.NativeLabels)
	removed := difference(prior.NativeLabels, native)

	for _, change := range []struct {
		labels     []string
		changeType domain.ChangeType
	}{
		{added, domain.ChangeAdded},
		{removed, domain.ChangeRemoved},
	} {
		for _, label := range change.labels {
			entry, watched := criticalSet[label]
			if !watched {
				continue
			}
			changes++
			k := groupKey{label: label, changeType: change.changeType}
			g := groups[k]
			if g == nil {
				g = &changeGroup{priority: entry.Priority}
				groups[k] = g
			}
			g.details = append(g.details, domain.ChangeDetail{
				SubjectID:    subj.ID,
				SubjectName:  subj.FullName,
				SubjectEmail: subj.Email,
				Product:      joinProducts(subj.Products),
				Cohort:       subj.Cohort,
				NativeLabels: native,
				DetectedAt:   now,
			})
		}
	}
	return true, changes, nil
}

// persistGroups writes one notification per aggregated change group.
// Keys that already have a notification for this week are skipped.
func (s *Service) persistGroups(ctx context.Context, groups map[groupKey]*changeGroup, week, year int, result *RunResult) int {
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].label != keys[j].label {
			return keys[i].label < keys[j].label
		}
		return keys[i].changeType < keys[j].changeType
	})

	created := 0
	for _, k := range keys {
		g := groups[k]
		n := domain.ChangeNotification{
			Label:      k.label,
			ChangeType: k.changeType,
			Week:       week,
			Year:       year,
			Priority:   g.priority,
			Details:    g.details,
		}
		wasCreated, err := s.registry.RecordNotification(ctx, &n)
		if err != nil {
			result.Errors++
			logger.Error("notification persist failed", "label", k.label, "error", err.Error())
			continue
		}
		if !wasCreated {
			continue
		}
		created++
		if g.priority == domain.PriorityCritical && s.alerter != nil {
			if err := s.alerter.Alert(ctx, n); err != nil {
				logger.Warn("critical alert failed", "label", k.label, "error", err.Error())
			}
		}
	}
	return created
}

func joinProducts(products []string) string {
	switch len(products) {
	case 0:
		return ""
	case 1:
		return products[0]
	}
	out := products[0]
	for _, p := range products[1:] {
		out += ", " + p
	}
	return out
}

// difference returns elements of a not present in b, preserving order.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
