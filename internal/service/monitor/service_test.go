package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/pkg/isoweek"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
)

type mockSubjectRepo struct {
	subjects []MonitoredSubject
}

func (m *mockSubjectRepo) ListWithActiveEnrollments(ctx context.Context) ([]MonitoredSubject, error) {
	return m.subjects, nil
}

func (m *mockSubjectRepo) GetByEmail(ctx context.Context, email string) (*domain.Subject, error) {
	for _, s := range m.subjects {
		if s.Email == email {
			subj := s.Subject
			return &subj, nil
		}
	}
	return nil, fmt.Errorf("subject not found")
}

type snapshotKey struct {
	subjectID  string
	week, year int
}

type mockSnapshotRepo struct {
	rows    map[snapshotKey]*domain.WeeklySnapshot
	upserts int
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{rows: make(map[snapshotKey]*domain.WeeklySnapshot)}
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snap *domain.WeeklySnapshot) error {
	m.upserts++
	cp := *snap
	m.rows[snapshotKey{snap.SubjectID, snap.Week, snap.Year}] = &cp
	return nil
}

func (m *mockSnapshotRepo) GetForWeek(ctx context.Context, subjectID string, week, year int) (*domain.WeeklySnapshot, error) {
	snap, ok := m.rows[snapshotKey{subjectID, week, year}]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

func (m *mockSnapshotRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	pruned := 0
	for k, snap := range m.rows {
		if snap.CapturedAt.Before(cutoff) {
			delete(m.rows, k)
			pruned++
		}
	}
	return pruned, nil
}

type mockLabelSource struct {
	labels map[string][]string
	errs   map[string]error
}

func (m *mockLabelSource) GetContactLabels(ctx context.Context, email string) ([]string, error) {
	if err := m.errs[email]; err != nil {
		return nil, err
	}
	return m.labels[email], nil
}

type mockCriticalLabelRepo struct {
	entries []domain.CriticalLabel
}

func (m *mockCriticalLabelRepo) List(ctx context.Context, onlyActive bool) ([]domain.CriticalLabel, error) {
	if !onlyActive {
		return m.entries, nil
	}
	var out []domain.CriticalLabel
	for _, e := range m.entries {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockCriticalLabelRepo) Create(ctx context.Context, l *domain.CriticalLabel) error { return nil }
func (m *mockCriticalLabelRepo) Update(ctx context.Context, l *domain.CriticalLabel) error { return nil }
func (m *mockCriticalLabelRepo) Delete(ctx context.Context, id string) error               { return nil }
func (m *mockCriticalLabelRepo) Get(ctx context.Context, id string) (*domain.CriticalLabel, error) {
	return nil, registry.ErrNotFound
}

type notifKey struct {
	label      string
	changeType domain.ChangeType
	week, year int
}

type mockNotificationRepo struct {
	created []domain.ChangeNotification
	seen    map[notifKey]bool
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{seen: make(map[notifKey]bool)}
}

func (m *mockNotificationRepo) CreateIfAbsent(ctx context.Context, n *domain.ChangeNotification) error {
	k := notifKey{n.Label, n.ChangeType, n.Week, n.Year}
	if m.seen[k] {
		return registry.ErrDuplicate
	}
	m.seen[k] = true
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]domain.ChangeNotification, int, error) {
	return m.created, len(m.created), nil
}

func (m *mockNotificationRepo) Get(ctx context.Context, id string) (*domain.ChangeNotification, error) {
	return nil, registry.ErrNotFound
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string, read bool) error { return nil }

type mockAlerter struct {
	alerts []domain.ChangeNotification
}

func (m *mockAlerter) Alert(ctx context.Context, n domain.ChangeNotification) error {
	m.alerts = append(m.alerts, n)
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func noSleep(time.Duration) {}

func newTestService(subjects *mockSubjectRepo, snaps *mockSnapshotRepo, notifs *mockNotificationRepo, critical []domain.CriticalLabel, source LabelSource) *Service {
	reg := registry.NewService(&mockCriticalLabelRepo{entries: critical}, notifs)
	svc := NewService(subjects, snaps, reg, source, nil)
	svc.SetClock(fixedClock(time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)), noSleep)
	return svc
}

func TestRun_DisabledShortCircuits(t *testing.T) {
	svc := newTestService(&mockSubjectRepo{}, newMockSnapshotRepo(), newMockNotificationRepo(), nil, &mockLabelSource{})

	result, err := svc.Run(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected unsuccessful result when disabled")
	}
	if result.Reason != "monitoring disabled" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
	if result.SubjectsProcessed != 0 {
		t.Errorf("expected no subjects processed, got %d", result.SubjectsProcessed)
	}
}

func TestRun_EmptyWatchListShortCircuits(t *testing.T) {
	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "one@example.com"}},
	}}
	snaps := newMockSnapshotRepo()
	svc := newTestService(subjects, snaps, newMockNotificationRepo(), nil, &mockLabelSource{})

	result, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected unsuccessful result with empty watch list")
	}
	if result.Reason != "no active critical labels" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
	if snaps.upserts != 0 {
		t.Errorf("expected no snapshots captured, got %d", snaps.upserts)
	}
}

func TestRun_DetectsWatchedRemoval(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	week, year := isoweek.Of(now)
	prevWeek, prevYear := isoweek.Previous(week, year)

	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "one@example.com", FullName: "One Person", Cohort: "2024-A"}, Products: []string{"OGI_V1"}},
	}}
	snaps := newMockSnapshotRepo()
	snaps.rows[snapshotKey{"s1", prevWeek, prevYear}] = &domain.WeeklySnapshot{
		SubjectID:    "s1",
		Week:         prevWeek,
		Year:         prevYear,
		NativeLabels: []string{"vip-client", "imported-2023"},
		CapturedAt:   now.AddDate(0, 0, -7),
	}
	notifs := newMockNotificationRepo()
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityCritical, Active: true},
	}
	source := &mockLabelSource{labels: map[string][]string{
		"one@example.com": {"imported-2023"},
	}}

	svc := newTestService(subjects, snaps, notifs, critical, source)
	alerter := &mockAlerter{}
	svc.SetAlerter(alerter)

	result, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, reason: %q", result.Reason)
	}
	if result.ChangesDetected != 1 {
		t.Errorf("expected 1 change, got %d", result.ChangesDetected)
	}
	if result.NotificationsCreated != 1 {
		t.Fatalf("expected 1 notification, got %d", result.NotificationsCreated)
	}

	n := notifs.created[0]
	if n.Label != "vip-client" || n.ChangeType != domain.ChangeRemoved {
		t.Errorf("unexpected notification: %s %s", n.Label, n.ChangeType)
	}
	if n.Week != week || n.Year != year {
		t.Errorf("unexpected week bucket: %d/%d", n.Week, n.Year)
	}
	if n.AffectedCount != 1 {
		t.Errorf("expected affected count 1, got %d", n.AffectedCount)
	}
	if len(n.Details) != 1 || n.Details[0].SubjectEmail != "one@example.com" {
		t.Fatalf("unexpected details: %+v", n.Details)
	}
	if n.Details[0].Product != "OGI_V1" {
		t.Errorf("unexpected product: %q", n.Details[0].Product)
	}

	if len(alerter.alerts) != 1 {
		t.Errorf("expected 1 critical alert, got %d", len(alerter.alerts))
	}
}

func TestRun_UnwatchedChangesIgnored(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	week, year := isoweek.Of(now)
	prevWeek, prevYear := isoweek.Previous(week, year)

	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "one@example.com"}},
	}}
	snaps := newMockSnapshotRepo()
	snaps.rows[snapshotKey{"s1", prevWeek, prevYear}] = &domain.WeeklySnapshot{
		SubjectID:    "s1",
		Week:         prevWeek,
		Year:         prevYear,
		NativeLabels: []string{"newsletter"},
	}
	notifs := newMockNotificationRepo()
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityCritical, Active: true},
	}
	source := &mockLabelSource{labels: map[string][]string{
		"one@example.com": {"newsletter", "black-friday-2026"},
	}}

	svc := newTestService(subjects, snaps, notifs, critical, source)

	result, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ChangesDetected != 0 {
		t.Errorf("expected 0 changes for unwatched label, got %d", result.ChangesDetected)
	}
	if result.NotificationsCreated != 0 {
		t.Errorf("expected 0 notifications, got %d", result.NotificationsCreated)
	}
	if _, ok := snaps.rows[snapshotKey{"s1", week, year}]; !ok {
		t.Error("expected this week's snapshot to be stored regardless")
	}
}

func TestRun_SecondRunSameWeekCreatesNoDuplicates(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	week, year := isoweek.Of(now)
	prevWeek, prevYear := isoweek.Previous(week, year)

	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "one@example.com"}},
	}}
	snaps := newMockSnapshotRepo()
	snaps.rows[snapshotKey{"s1", prevWeek, prevYear}] = &domain.WeeklySnapshot{
		SubjectID:    "s1",
		Week:         prevWeek,
		Year:         prevYear,
		NativeLabels: []string{"vip-client"},
	}
	notifs := newMockNotificationRepo()
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityMedium, Active: true},
	}
	source := &mockLabelSource{labels: map[string][]string{
		"one@example.com": {"partner-referral"},
	}}

	// The prior snapshot has a native label the current set lacks, but the
	// current set must itself be non-empty for the subject to be captured.
	critical = append(critical, domain.CriticalLabel{ID: "c2", Name: "partner-referral", Priority: domain.PriorityLow, Active: true})

	svc := newTestService(subjects, snaps, notifs, critical, source)

	first, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.NotificationsCreated != 2 {
		t.Fatalf("expected 2 notifications on first run, got %d", first.NotificationsCreated)
	}

	second, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ChangesDetected != 2 {
		t.Errorf("second run should still detect the changes, got %d", second.ChangesDetected)
	}
	if second.NotificationsCreated != 0 {
		t.Errorf("second run in week %d/%d must create no new notifications, got %d", week, year, second.NotificationsCreated)
	}
	if len(notifs.created) != 2 {
		t.Errorf("expected 2 stored notifications total, got %d", len(notifs.created))
	}
}

func TestRun_SubjectErrorsAreIsolated(t *testing.T) {
	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "bad@example.com"}},
		{Subject: domain.Subject{ID: "s2", Email: "good@example.com"}},
	}}
	snaps := newMockSnapshotRepo()
	notifs := newMockNotificationRepo()
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityCritical, Active: true},
	}
	source := &mockLabelSource{
		labels: map[string][]string{"good@example.com": {"vip-client"}},
		errs:   map[string]error{"bad@example.com": fmt.Errorf("connection reset")},
	}

	svc := newTestService(subjects, snaps, notifs, critical, source)

	result, err := svc.Run(context.Background(), Config{Enabled: true, BatchSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run should succeed despite per-subject errors, reason: %q", result.Reason)
	}
	if result.Errors != 1 {
		t.Errorf("expected 1 error counted, got %d", result.Errors)
	}
	if result.SubjectsProcessed != 2 {
		t.Errorf("expected both subjects processed, got %d", result.SubjectsProcessed)
	}
	if result.SnapshotsCreated != 1 {
		t.Errorf("expected 1 snapshot from the healthy subject, got %d", result.SnapshotsCreated)
	}
}

func TestRun_SubjectWithNoNativeLabelsSkipped(t *testing.T) {
	subjects := &mockSubjectRepo{subjects: []MonitoredSubject{
		{Subject: domain.Subject{ID: "s1", Email: "one@example.com"}},
	}}
	snaps := newMockSnapshotRepo()
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityLow, Active: true},
	}
	// Only system-owned labels: nothing native to snapshot.
	source := &mockLabelSource{labels: map[string][]string{
		"one@example.com": {"SYS:OGI_V1 - Active"},
	}}

	svc := newTestService(subjects, snaps, newMockNotificationRepo(), critical, source)

	result, err := svc.Run(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SnapshotsCreated != 0 {
		t.Errorf("expected no snapshot for all-system label set, got %d", result.SnapshotsCreated)
	}
	if snaps.upserts != 0 {
		t.Errorf("expected no upserts, got %d", snaps.upserts)
	}
}

func TestRun_PrunesOldSnapshots(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	subjects := &mockSubjectRepo{}
	snaps := newMockSnapshotRepo()
	snaps.rows[snapshotKey{"old", 1, 2026}] = &domain.WeeklySnapshot{
		SubjectID:  "old",
		Week:       1,
		Year:       2026,
		CapturedAt: now.AddDate(0, -8, 0),
	}
	critical := []domain.CriticalLabel{
		{ID: "c1", Name: "vip-client", Priority: domain.PriorityLow, Active: true},
	}

	svc := newTestService(subjects, snaps, newMockNotificationRepo(), critical, &mockLabelSource{})

	if _, err := svc.Run(context.Background(), Config{Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps.rows) != 0 {
		t.Errorf("expected old snapshot pruned, %d rows remain", len(snaps.rows))
	}
}
