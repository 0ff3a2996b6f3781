package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
)

// CriticalLabelRepo implements registry.CriticalLabelRepository against
// PostgreSQL. Label names are unique across the watch list.
type CriticalLabelRepo struct{ db *sql.DB }

// NewCriticalLabelRepo creates a Postgres-backed critical label repository.
func NewCriticalLabelRepo(db *sql.DB) *CriticalLabelRepo { return &CriticalLabelRepo{db: db} }

func (r *CriticalLabelRepo) List(ctx context.Context, onlyActive bool) ([]domain.CriticalLabel, error) {
	q := `
		SELECT id, name, priority, active, COALESCE(created_by,''),
		       COALESCE(description,''), created_at, updated_at
		FROM tagsync_critical_labels`
	if onlyActive {
		q += ` WHERE active = true`
	}
	q += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list critical labels: %w", err)
	}
	defer rows.Close()

	var out []domain.CriticalLabel
	for rows.Next() {
		var l domain.CriticalLabel
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Priority, &l.Active, &l.CreatedBy,
			&l.Description, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan critical label: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *CriticalLabelRepo) Get(ctx context.Context, id string) (*domain.CriticalLabel, error) {
	l := &domain.CriticalLabel{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, priority, active, COALESCE(created_by,''),
		       COALESCE(description,''), created_at, updated_at
		FROM tagsync_critical_labels
		WHERE id = $1
	`, id).Scan(
		&l.ID, &l.Name, &l.Priority, &l.Active, &l.CreatedBy,
		&l.Description, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get critical label: %w", err)
	}
	return l, nil
}

func (r *CriticalLabelRepo) Create(ctx context.Context, l *domain.CriticalLabel) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tagsync_critical_labels
			(id, name, priority, active, created_by, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, l.ID, l.Name, l.Priority, l.Active, l.CreatedBy, l.Description)
	if isUniqueViolation(err) {
		return registry.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create critical label: %w", err)
	}
	return nil
}

func (r *CriticalLabelRepo) Update(ctx context.Context, l *domain.CriticalLabel) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tagsync_critical_labels
		SET name = $1, priority = $2, active = $3, description = $4, updated_at = NOW()
		WHERE id = $5
	`, l.Name, l.Priority, l.Active, l.Description, l.ID)
	if isUniqueViolation(err) {
		return registry.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update critical label: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (r *CriticalLabelRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tagsync_critical_labels WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete critical label: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
