package protection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// mockRepo is an in-memory snapshot repository for testing.
type mockRepo struct {
	mu    sync.RWMutex
	store map[string]*domain.LabelSnapshot
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[string]*domain.LabelSnapshot)}
}

func (m *mockRepo) Get(_ context.Context, subjectID string) (*domain.LabelSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.store[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	cp.History = append([]domain.HistoryEntry(nil), snap.History...)
	return &cp, nil
}

func (m *mockRepo) Upsert(_ context.Context, snap *domain.LabelSnapshot, newHistory []domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[snap.SubjectID]
	if !ok {
		cp := *snap
		cp.History = append([]domain.HistoryEntry(nil), newHistory...)
		m.store[snap.SubjectID] = &cp
		return nil
	}
	stored.NativeLabels = snap.NativeLabels
	stored.SystemLabels = snap.SystemLabels
	stored.LastSyncAt = snap.LastSyncAt
	stored.SyncCount = snap.SyncCount
	stored.History = append(stored.History, newHistory...)
	return nil
}

// mockSource is a scripted CRM label source.
type mockSource struct {
	labels map[string][]string
}

func (m *mockSource) GetContactLabels(_ context.Context, email string) ([]string, error) {
	return m.labels[email], nil
}

func newService(labels map[string][]string) (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, &mockSource{labels: labels})
	svc.SetClock(func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) })
	return svc, repo
}

var testSubject = domain.Subject{ID: "sub-001", Email: "student@example.com"}

func TestCaptureSnapshot_InitialCapture(t *testing.T) {
	svc, repo := newService(map[string][]string{
		"student@example.com": {"VIP Customer", "SYS:OGI_V1 - Active"},
	})

	snap, err := svc.CaptureSnapshot(context.Background(), testSubject, "tag_sync")
	if err != nil {
		t.Fatalf("CaptureSnapshot: %v", err)
	}
	if len(snap.NativeLabels) != 1 || snap.NativeLabels[0] != "VIP Customer" {
		t.Errorf("native = %v", snap.NativeLabels)
	}
	if len(snap.SystemLabels) != 1 || snap.SystemLabels[0] != "SYS:OGI_V1 - Active" {
		t.Errorf("system = %v", snap.SystemLabels)
	}
	if snap.SyncCount != 1 {
		t.Errorf("sync count = %d", snap.SyncCount)
	}

	stored, _ := repo.Get(context.Background(), "sub-001")
	if len(stored.History) != 1 || stored.History[0].Action != domain.HistoryInitialCapture {
		t.Fatalf("history = %+v", stored.History)
	}
}

func TestCaptureSnapshot_RecordsNativeChurnOnly(t *testing.T) {
	source := &mockSource{labels: map[string][]string{
		"student@example.com": {"VIP Customer", "SYS:OGI_V1 - Active"},
	}}
	repo := newMockRepo()
	svc := NewService(repo, source)

	ctx := context.Background()
	if _, err := svc.CaptureSnapshot(ctx, testSubject, "tag_sync"); err != nil {
		t.Fatalf("first capture: %v", err)
	}

	// Native label added, native label kept, system labels churned.
	source.labels["student@example.com"] = []string{"VIP Customer", "Refund Requested", "SYS:OGI_V1 - Inactive 7d"}
	snap, err := svc.CaptureSnapshot(ctx, testSubject, "weekly_monitor")
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if snap.SyncCount != 2 {
		t.Errorf("sync count = %d", snap.SyncCount)
	}

	stored, _ := repo.Get(ctx, "sub-001")
	if len(stored.History) != 2 {
		t.Fatalf("expected INITIAL_CAPTURE + ADDED, got %+v", stored.History)
	}
	added := stored.History[1]
	if added.Action != domain.HistoryAdded || len(added.Labels) != 1 || added.Labels[0] != "Refund Requested" {
		t.Errorf("added entry = %+v", added)
	}

	// Native label disappears: REMOVED entry.
	source.labels["student@example.com"] = []string{"Refund Requested"}
	if _, err := svc.CaptureSnapshot(ctx, testSubject, "weekly_monitor"); err != nil {
		t.Fatalf("third capture: %v", err)
	}
	stored, _ = repo.Get(ctx, "sub-001")
	last := stored.History[len(stored.History)-1]
	if last.Action != domain.HistoryRemoved || len(last.Labels) != 1 || last.Labels[0] != "VIP Customer" {
		t.Errorf("removed entry = %+v", last)
	}
}

func TestCanRemove_FailClosedForNonSystemLabels(t *testing.T) {
	svc, _ := newService(nil)
	for _, label := range []string{"VIP Customer", "", "sys:ogi_v1 - active", "Refund Requested"} {
		d, err := svc.CanRemove(context.Background(), "sub-001", label)
		if err != nil {
			t.Fatalf("CanRemove(%q): %v", label, err)
		}
		if d.Allowed {
			t.Errorf("CanRemove(%q) must be denied", label)
		}
		if d.Reason != "not system-owned" {
			t.Errorf("CanRemove(%q) reason = %q", label, d.Reason)
		}
	}
}

func TestCanRemove_DeniesCurrentlyNativeCollision(t *testing.T) {
	// A human created a label that happens to match the reserved shape.
	// Register it as native directly to simulate the snapshot state
	// after an operator-side capture.
	ctx := context.Background()
	repo := newMockRepo()
	repo.store["sub-001"] = &domain.LabelSnapshot{
		SubjectID:    "sub-001",
		NativeLabels: []string{"SYS:OGI_V1 - Handmade"},
	}
	svc := NewService(repo, &mockSource{})

	d, err := svc.CanRemove(ctx, "sub-001", "SYS:OGI_V1 - Handmade")
	if err != nil {
		t.Fatalf("CanRemove: %v", err)
	}
	if d.Allowed || d.Reason != "registered as native" {
		t.Errorf("decision = %+v", d)
	}
}

func TestCanRemove_DeniesHistoricallyNative(t *testing.T) {
	repo := newMockRepo()
	repo.store["sub-001"] = &domain.LabelSnapshot{
		SubjectID:    "sub-001",
		NativeLabels: []string{},
		History: []domain.HistoryEntry{{
			Action: domain.HistoryInitialCapture,
			Labels: []string{"SYS:OGI_V1 - Legacy Import"},
		}},
	}
	svc := NewService(repo, &mockSource{})

	d, err := svc.CanRemove(context.Background(), "sub-001", "SYS:OGI_V1 - Legacy Import")
	if err != nil {
		t.Fatalf("CanRemove: %v", err)
	}
	if d.Allowed || d.Reason != "historically native" {
		t.Errorf("decision = %+v", d)
	}
}

func TestCanRemove_AllowsCleanSystemLabel(t *testing.T) {
	svc, _ := newService(map[string][]string{
		"student@example.com": {"VIP Customer"},
	})
	ctx := context.Background()
	if _, err := svc.CaptureSnapshot(ctx, testSubject, "tag_sync"); err != nil {
		t.Fatalf("capture: %v", err)
	}

	d, err := svc.CanRemove(ctx, "sub-001", "SYS:OGI_V1 - Inactive 7d")
	if err != nil {
		t.Fatalf("CanRemove: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected allowed, got %+v", d)
	}
}

func TestFilterSafeRemovals_SplitsAndReports(t *testing.T) {
	repo := newMockRepo()
	repo.store["sub-001"] = &domain.LabelSnapshot{
		SubjectID:    "sub-001",
		NativeLabels: []string{"SYS:OGI_V1 - Handmade"},
	}
	svc := NewService(repo, &mockSource{})

	out, err := svc.FilterSafeRemovals(context.Background(), "sub-001", []string{
		"SYS:OGI_V1 - Inactive 7d",
		"SYS:OGI_V1 - Handmade",
		"VIP Customer",
	})
	if err != nil {
		t.Fatalf("FilterSafeRemovals: %v", err)
	}
	if len(out.Safe) != 1 || out.Safe[0] != "SYS:OGI_V1 - Inactive 7d" {
		t.Errorf("safe = %v", out.Safe)
	}
	if len(out.Blocked) != 2 {
		t.Errorf("blocked = %v", out.Blocked)
	}
	if out.Reasons["VIP Customer"] != "not system-owned" {
		t.Errorf("reasons = %v", out.Reasons)
	}
	if out.Reasons["SYS:OGI_V1 - Handmade"] != "registered as native" {
		t.Errorf("reasons = %v", out.Reasons)
	}
}

func TestClassify(t *testing.T) {
	svc, _ := newService(nil)
	c := svc.Classify([]string{"VIP", "SYS:OGI_V1 - Active"})
	if len(c.SystemOwned) != 1 || len(c.ExternallyOwned) != 1 {
		t.Errorf("classification = %+v", c)
	}
}
