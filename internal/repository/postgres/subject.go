package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/rules"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
	syncsvc "github.com/ignite/crm-tag-sync/internal/service/sync"
)

// SubjectRepo serves both the per-subject sync flow and the weekly
// monitor's subject resolution against PostgreSQL.
type SubjectRepo struct{ db *sql.DB }

// NewSubjectRepo creates a Postgres-backed subject repository.
func NewSubjectRepo(db *sql.DB) *SubjectRepo { return &SubjectRepo{db: db} }

func (r *SubjectRepo) GetSubject(ctx context.Context, id string) (*domain.Subject, error) {
	return r.getSubject(ctx, "id", id)
}

func (r *SubjectRepo) GetByEmail(ctx context.Context, email string) (*domain.Subject, error) {
	return r.getSubject(ctx, "email", email)
}

func (r *SubjectRepo) getSubject(ctx context.Context, column, value string) (*domain.Subject, error) {
	s := &domain.Subject{}
	var inactivatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, email, full_name, COALESCE(cohort,''),
		       manually_inactivated, inactivated_at,
		       COALESCE(inactivated_by,''), COALESCE(inactivation_reason,''),
		       created_at, updated_at
		FROM tagsync_subjects
		WHERE %s = $1
	`, column), value).Scan(
		&s.ID, &s.Email, &s.FullName, &s.Cohort,
		&s.ManuallyInactivated, &inactivatedAt,
		&s.InactivatedBy, &s.InactivationReason,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, syncsvc.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	if inactivatedAt.Valid {
		t := inactivatedAt.Time
		s.InactivatedAt = &t
	}
	return s, nil
}

func (r *SubjectRepo) ListEnrollments(ctx context.Context, subjectID string) ([]rules.EnrollmentInput, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.subject_id, e.product_id, e.status,
		       e.days_since_login, e.days_since_action, e.logins_30d, e.active_weeks_30d,
		       e.completion_pct, COALESCE(e.modules,'[]'),
		       e.refunded, e.membership_status, e.reactivated_at,
		       COALESCE(e.synced_labels,'[]'), e.last_synced_at,
		       e.created_at, e.updated_at,
		       p.id, p.name, COALESCE(p.code,'')
		FROM tagsync_enrollments e
		JOIN tagsync_products p ON p.id = e.product_id
		WHERE e.subject_id = $1
		ORDER BY e.created_at
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []rules.EnrollmentInput
	for rows.Next() {
		var in rules.EnrollmentInput
		var modules, syncedLabels []byte
		var reactivatedAt, lastSyncedAt sql.NullTime
		e := &in.Enrollment
		if err := rows.Scan(
			&e.ID, &e.SubjectID, &e.ProductID, &e.Status,
			&e.Engagement.DaysSinceLogin, &e.Engagement.DaysSinceAction,
			&e.Engagement.Logins30d, &e.Engagement.ActiveWeeks30d,
			&e.CompletionPct, &modules,
			&e.Refunded, &e.MembershipStatus, &reactivatedAt,
			&syncedLabels, &lastSyncedAt,
			&e.CreatedAt, &e.UpdatedAt,
			&in.Product.ID, &in.Product.Name, &in.Product.Code,
		); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		if err := json.Unmarshal(modules, &e.Modules); err != nil {
			return nil, fmt.Errorf("decode modules for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal(syncedLabels, &e.SyncedLabels); err != nil {
			return nil, fmt.Errorf("decode synced labels for %s: %w", e.ID, err)
		}
		if reactivatedAt.Valid {
			t := reactivatedAt.Time
			e.ReactivatedAt = &t
		}
		if lastSyncedAt.Valid {
			t := lastSyncedAt.Time
			e.LastSyncedAt = &t
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SubjectRepo) UpdateSyncedLabels(ctx context.Context, enrollmentID string, labels []string) error {
	encoded, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode synced labels: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE tagsync_enrollments
		SET synced_labels = $1, last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, encoded, enrollmentID)
	if err != nil {
		return fmt.Errorf("update synced labels: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("enrollment %s not found", enrollmentID)
	}
	return nil
}

func (r *SubjectRepo) ListWithActiveEnrollments(ctx context.Context) ([]monitor.MonitoredSubject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.email, s.full_name, COALESCE(s.cohort,''),
		       s.manually_inactivated, s.created_at, s.updated_at,
		       ARRAY_AGG(DISTINCT p.name)
		FROM tagsync_subjects s
		JOIN tagsync_enrollments e ON e.subject_id = s.id AND e.status = 'active'
		JOIN tagsync_products p ON p.id = e.product_id
		GROUP BY s.id, s.email, s.full_name, s.cohort, s.manually_inactivated, s.created_at, s.updated_at
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list monitored subjects: %w", err)
	}
	defer rows.Close()

	var out []monitor.MonitoredSubject
	for rows.Next() {
		var m monitor.MonitoredSubject
		if err := rows.Scan(
			&m.ID, &m.Email, &m.FullName, &m.Cohort,
			&m.ManuallyInactivated, &m.CreatedAt, &m.UpdatedAt,
			pq.Array(&m.Products),
		); err != nil {
			return nil, fmt.Errorf("scan monitored subject: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
