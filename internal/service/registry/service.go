package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// Service implements critical-label and notification business logic.
type Service struct {
	labels        CriticalLabelRepository
	notifications NotificationRepository
}

// NewService creates a registry service.
func NewService(labels CriticalLabelRepository, notifications NotificationRepository) *Service {
	return &Service{labels: labels, notifications: notifications}
}

// ListCriticalLabels returns the watch list, optionally active entries only.
func (s *Service) ListCriticalLabels(ctx context.Context, onlyActive bool) ([]domain.CriticalLabel, error) {
	return s.labels.List(ctx, onlyActive)
}

// ActiveCriticalSet returns the active watch list keyed by label name
// for O(1) filtering during a monitor run.
func (s *Service) ActiveCriticalSet(ctx context.Context) (map[string]domain.CriticalLabel, error) {
	entries, err := s.labels.List(ctx, true)
	if err != nil {
		return nil, err
	}
	set := make(map[string]domain.CriticalLabel, len(entries))
	for _, e := range entries {
		set[e.Name] = e
	}
	return set, nil
}

// CreateCriticalLabel registers a label name for monitoring.
func (s *Service) CreateCriticalLabel(ctx context.Context, l *domain.CriticalLabel) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return fmt.Errorf("label name is required")
	}
	if !validPriority(l.Priority) {
		return fmt.Errorf("invalid priority %q", l.Priority)
	}
	l.Active = true
	return s.labels.Create(ctx, l)
}

// UpdateCriticalLabel modifies an existing watch list entry.
func (s *Service) UpdateCriticalLabel(ctx context.Context, l *domain.CriticalLabel) error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !validPriority(l.Priority) {
		return fmt.Errorf("invalid priority %q", l.Priority)
	}
	return s.labels.Update(ctx, l)
}

// DeleteCriticalLabel removes a watch list entry.
func (s *Service) DeleteCriticalLabel(ctx context.Context, id string) error {
	return s.labels.Delete(ctx, id)
}

// RecordNotification persists an aggregated change group. If a
// notification already exists for the (label, change type, week, year)
// key, the group is treated as already created and skipped: repeated
// detection in one week never produces duplicates. Returns true when a
// new notification row was created.
func (s *Service) RecordNotification(ctx context.Context, n *domain.ChangeNotification) (bool, error) {
	if n.Label == "" {
		return false, fmt.Errorf("label is required")
	}
	if n.ChangeType != domain.ChangeAdded && n.ChangeType != domain.ChangeRemoved {
		return false, fmt.Errorf("invalid change type %q", n.ChangeType)
	}
	n.AffectedCount = len(n.Details)

	err := s.notifications.CreateIfAbsent(ctx, n)
	if err == ErrDuplicate {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record notification: %w", err)
	}
	return true, nil
}

// ListNotifications returns notifications for the review surface.
func (s *Service) ListNotifications(ctx context.Context, unreadOnly bool, limit, offset int) ([]domain.ChangeNotification, int, error) {
	return s.notifications.List(ctx, unreadOnly, limit, offset)
}

// GetNotification returns one notification with its detail rows.
func (s *Service) GetNotification(ctx context.Context, id string) (*domain.ChangeNotification, error) {
	return s.notifications.Get(ctx, id)
}

// MarkNotificationRead flips the read flag.
func (s *Service) MarkNotificationRead(ctx context.Context, id string, read bool) error {
	return s.notifications.MarkRead(ctx, id, read)
}

func validPriority(p domain.CriticalPriority) bool {
	switch p {
	case domain.PriorityCritical, domain.PriorityMedium, domain.PriorityLow:
		return true
	}
	return false
}
