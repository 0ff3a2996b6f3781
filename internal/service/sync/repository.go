package sync

import (
	"context"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/rules"
)

// Repository loads the evaluation inputs and records sync state.
type Repository interface {
	// GetSubject returns the subject or ErrSubjectNotFound.
	GetSubject(ctx context.Context, id string) (*domain.Subject, error)
	// ListEnrollments returns the subject's enrollments paired with their
	// products, ready for evaluation.
	ListEnrollments(ctx context.Context, subjectID string) ([]rules.EnrollmentInput, error)
	// UpdateSyncedLabels records the label set most recently pushed for an
	// enrollment.
	UpdateSyncedLabels(ctx context.Context, enrollmentID string, labels []string) error
}

// LabelMutator is the CRM surface the apply step touches.
type LabelMutator interface {
	GetContactLabels(ctx context.Context, email string) ([]string, error)
	AddLabel(ctx context.Context, email, label string) error
	RemoveLabel(ctx context.Context, email, label string) error
}
