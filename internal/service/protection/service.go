package protection

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/labelfmt"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
)

// Service implements label protection. It is safe for concurrent use as
// long as captures for the same subject are not interleaved.
type Service struct {
	repo   Repository
	source LabelSource
	now    func() time.Time
}

// NewService creates a protection service backed by the given repository
// and CRM label source.
func NewService(repo Repository, source LabelSource) *Service {
	return &Service{repo: repo, source: source, now: time.Now}
}

// SetClock overrides the clock (useful for testing).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Classification splits a label set by ownership.
type Classification struct {
	SystemOwned     []string `json:"system_owned"`
	ExternallyOwned []string `json:"externally_owned"`
}

// Classify partitions labels by the reserved pattern.
func (s *Service) Classify(labels []string) Classification {
	system, native := labelfmt.Classify(labels)
	return Classification{SystemOwned: system, ExternallyOwned: native}
}

// CaptureSnapshot fetches the subject's full current label set from the
// CRM and upserts the rolling snapshot. The first capture writes an
// INITIAL_CAPTURE history entry; later captures append ADDED/REMOVED
// entries for the externally-owned subset only. System-owned churn is
// expected and not audited here.
func (s *Service) CaptureSnapshot(ctx context.Context, subject domain.Subject, source string) (*domain.LabelSnapshot, error) {
	if subject.ID == "" || subject.Email == "" {
		return nil, fmt.Errorf("subject id and email are required")
	}

	labels, err := s.source.GetContactLabels(ctx, subject.Email)
	if err != nil {
		return nil, fmt.Errorf("fetch labels for %s: %w", subject.ID, err)
	}
	system, native := labelfmt.Classify(labels)
	now := s.now().UTC()

	existing, err := s.repo.Get(ctx, subject.ID)
	if err == ErrNotFound {
		snap := &domain.LabelSnapshot{
			SubjectID:    subject.ID,
			NativeLabels: native,
			SystemLabels: system,
			CapturedAt:   now,
			LastSyncAt:   now,
			SyncCount:    1,
		}
		entry := domain.HistoryEntry{
			Timestamp: now,
			Action:    domain.HistoryInitialCapture,
			Labels:    native,
			Source:    source,
		}
		if err := s.repo.Upsert(ctx, snap, []domain.HistoryEntry{entry}); err != nil {
			return nil, fmt.Errorf("store initial snapshot for %s: %w", subject.ID, err)
		}
		logger.Info("initial label capture", "subject", subject.ID, "native", len(native), "system", len(system))
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", subject.ID, err)
	}

	added := difference(native, existing.NativeLabels)
	removed := difference(existing.NativeLabels, native)

	var newHistory []domain.HistoryEntry
	if len(added) > 0 {
		newHistory = append(newHistory, domain.HistoryEntry{
			Timestamp: now, Action: domain.HistoryAdded, Labels: added, Source: source,
		})
	}
	if len(removed) > 0 {
		newHistory = append(newHistory, domain.HistoryEntry{
			Timestamp: now, Action: domain.HistoryRemoved, Labels: removed, Source: source,
		})
	}

	existing.NativeLabels = native
	existing.SystemLabels = system
	existing.LastSyncAt = now
	existing.SyncCount++

	if err := s.repo.Upsert(ctx, existing, newHistory); err != nil {
		return nil, fmt.Errorf("update snapshot for %s: %w", subject.ID, err)
	}
	if len(added) > 0 || len(removed) > 0 {
		logger.Info("native label change recorded",
			"subject", subject.ID, "added", len(added), "removed", len(removed), "source", source)
	}
	return existing, nil
}

// Snapshot returns the subject's current snapshot with full history, or
// ErrNotFound if the subject was never captured.
func (s *Service) Snapshot(ctx context.Context, subjectID string) (*domain.LabelSnapshot, error) {
	return s.repo.Get(ctx, subjectID)
}

// Decision is the outcome of a removal-safety check. A denial is a
// policy outcome, not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanRemove is the fail-closed removal gate. Three sequential checks,
// first failure wins: the label must match the system-owned pattern,
// must not be registered as native in the current snapshot, and must
// never have appeared in an INITIAL_CAPTURE entry. The triple redundancy
// defends against a native label that coincidentally matches the
// reserved shape.
func (s *Service) CanRemove(ctx context.Context, subjectID, label string) (Decision, error) {
	if !labelfmt.IsSystemOwned(label) {
		return Decision{Allowed: false, Reason: "not system-owned"}, nil
	}

	snap, err := s.repo.Get(ctx, subjectID)
	if err == ErrNotFound {
		// No snapshot means no native registration to collide with.
		return Decision{Allowed: true}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("load snapshot for %s: %w", subjectID, err)
	}

	for _, native := range snap.NativeLabels {
		if native == label {
			return Decision{Allowed: false, Reason: "registered as native"}, nil
		}
	}
	for _, h := range snap.History {
		if h.Action != domain.HistoryInitialCapture {
			continue
		}
		for _, l := range h.Labels {
			if l == label {
				return Decision{Allowed: false, Reason: "historically native"}, nil
			}
		}
	}
	return Decision{Allowed: true}, nil
}

// SafeRemovals is the batch gate result. Blocked entries carry reasons
// and must be surfaced as warnings by the caller, never applied and
// never treated as a failure of the overall operation.
type SafeRemovals struct {
	Safe    []string          `json:"safe"`
	Blocked []string          `json:"blocked"`
	Reasons map[string]string `json:"reasons,omitempty"`
}

// FilterSafeRemovals applies the removal gate to a batch of candidates.
func (s *Service) FilterSafeRemovals(ctx context.Context, subjectID string, candidates []string) (SafeRemovals, error) {
	out := SafeRemovals{Reasons: make(map[string]string)}
	for _, label := range candidates {
		decision, err := s.CanRemove(ctx, subjectID, label)
		if err != nil {
			return SafeRemovals{}, err
		}
		if decision.Allowed {
			out.Safe = append(out.Safe, label)
			continue
		}
		out.Blocked = append(out.Blocked, label)
		out.Reasons[label] = decision.Reason
		logger.Warn("removal blocked", "subject", subjectID, "label", label, "reason", decision.Reason)
	}
	return out, nil
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
