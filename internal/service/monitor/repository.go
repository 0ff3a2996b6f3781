package monitor

import (
	"context"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// MonitoredSubject is a subject plus the product names of its active
// enrollments, for the notification detail rows.
type MonitoredSubject struct {
	domain.Subject
	Products []string
}

// SubjectRepository resolves the subject set for a run.
type SubjectRepository interface {
	// ListWithActiveEnrollments returns subjects holding at least one
	// active enrollment, with their product names.
	ListWithActiveEnrollments(ctx context.Context) ([]MonitoredSubject, error)
	// GetByEmail looks up a subject by contact address. Used to enrich
	// contacts found only on the CRM in the all-contacts scope.
	GetByEmail(ctx context.Context, email string) (*domain.Subject, error)
}

// SnapshotRepository persists the week-bucketed snapshots.
type SnapshotRepository interface {
	// Upsert stores this week's capture; one row per subject and week.
	Upsert(ctx context.Context, snap *domain.WeeklySnapshot) error
	// GetForWeek returns the subject's snapshot for the given ISO week,
	// or ErrNoSnapshot.
	GetForWeek(ctx context.Context, subjectID string, week, year int) (*domain.WeeklySnapshot, error)
	// DeleteOlderThan prunes snapshots captured before the cutoff and
	// returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// LabelSource fetches a contact's current label set from the CRM.
type LabelSource interface {
	GetContactLabels(ctx context.Context, email string) ([]string, error)
}

// ContactDirectory lists every contact address on the CRM. Needed only
// for the all-contacts scope.
type ContactDirectory interface {
	ListAllContactEmails(ctx context.Context) ([]string, error)
}

// Alerter pushes a newly created CRITICAL-tier notification to the
// operators. Optional; a nil alerter disables alerts.
type Alerter interface {
	Alert(ctx context.Context, n domain.ChangeNotification) error
}

// Archiver stores the finished run result durably. Optional.
type Archiver interface {
	ArchiveRun(ctx context.Context, result RunResult) error
}
