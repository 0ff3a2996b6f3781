package protection

import (
	"context"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// Repository persists label snapshots with their append-only history.
type Repository interface {
	// Get returns the subject's snapshot including full history, or
	// ErrNotFound if the subject was never captured.
	Get(ctx context.Context, subjectID string) (*domain.LabelSnapshot, error)
	// Upsert stores the snapshot's current state and appends the given
	// history entries. Existing history rows are never modified.
	Upsert(ctx context.Context, snap *domain.LabelSnapshot, newHistory []domain.HistoryEntry) error
}

// LabelSource fetches a subject's full current label set from the
// external CRM.
type LabelSource interface {
	GetContactLabels(ctx context.Context, email string) ([]string, error)
}
