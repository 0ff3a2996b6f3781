package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
)

// NotificationRepo implements registry.NotificationRepository against
// PostgreSQL. The UNIQUE (label, change_type, week, year) constraint is
// the authority on notification uniqueness; the service layer maps the
// conflict to a skip.
type NotificationRepo struct{ db *sql.DB }

// NewNotificationRepo creates a Postgres-backed notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) CreateIfAbsent(ctx context.Context, n *domain.ChangeNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification insert: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tagsync_change_notifications
			(id, label, change_type, week, year, affected_count, priority, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW())
		ON CONFLICT (label, change_type, week, year) DO NOTHING
		RETURNING id
	`, n.ID, n.Label, n.ChangeType, n.Week, n.Year, n.AffectedCount, n.Priority).Scan(&n.ID)
	if err == sql.ErrNoRows {
		return registry.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	for i := range n.Details {
		d := &n.Details[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.NotificationID = n.ID
		native, err := json.Marshal(d.NativeLabels)
		if err != nil {
			return fmt.Errorf("encode detail labels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tagsync_change_details
				(id, notification_id, subject_id, subject_name, subject_email,
				 product, cohort, native_labels, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, d.ID, d.NotificationID, d.SubjectID, d.SubjectName, d.SubjectEmail,
			d.Product, d.Cohort, native, d.DetectedAt); err != nil {
			return fmt.Errorf("insert notification detail: %w", err)
		}
	}
	return tx.Commit()
}

func (r *NotificationRepo) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]domain.ChangeNotification, int, error) {
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM tagsync_change_notifications`
	if unreadOnly {
		countQ += ` WHERE read = false`
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	q := `
		SELECT id, label, change_type, week, year, affected_count, priority, read, created_at
		FROM tagsync_change_notifications`
	if unreadOnly {
		q += ` WHERE read = false`
	}
	q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.ChangeNotification
	for rows.Next() {
		var n domain.ChangeNotification
		if err := rows.Scan(
			&n.ID, &n.Label, &n.ChangeType, &n.Week, &n.Year,
			&n.AffectedCount, &n.Priority, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *NotificationRepo) Get(ctx context.Context, id string) (*domain.ChangeNotification, error) {
	n := &domain.ChangeNotification{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, label, change_type, week, year, affected_count, priority, read, created_at
		FROM tagsync_change_notifications
		WHERE id = $1
	`, id).Scan(
		&n.ID, &n.Label, &n.ChangeType, &n.Week, &n.Year,
		&n.AffectedCount, &n.Priority, &n.Read, &n.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, notification_id, subject_id, subject_name, subject_email,
		       COALESCE(product,''), COALESCE(cohort,''), native_labels, detected_at
		FROM tagsync_change_details
		WHERE notification_id = $1
		ORDER BY subject_email
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get notification details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.ChangeDetail
		var native []byte
		if err := rows.Scan(
			&d.ID, &d.NotificationID, &d.SubjectID, &d.SubjectName, &d.SubjectEmail,
			&d.Product, &d.Cohort, &native, &d.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification detail: %w", err)
		}
		if err := json.Unmarshal(native, &d.NativeLabels); err != nil {
			return nil, fmt.Errorf("decode detail labels: %w", err)
		}
		n.Details = append(n.Details, d)
	}
	return n, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id string, read bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tagsync_change_notifications SET read = $1 WHERE id = $2
	`, read, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}
