package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
)

// WeeklySnapshotRepo implements monitor.SnapshotRepository against
// PostgreSQL. One row per subject per ISO week.
type WeeklySnapshotRepo struct{ db *sql.DB }

// NewWeeklySnapshotRepo creates a Postgres-backed weekly snapshot repository.
func NewWeeklySnapshotRepo(db *sql.DB) *WeeklySnapshotRepo { return &WeeklySnapshotRepo{db: db} }

func (r *WeeklySnapshotRepo) Upsert(ctx context.Context, snap *domain.WeeklySnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	native, err := json.Marshal(snap.NativeLabels)
	if err != nil {
		return fmt.Errorf("encode native labels: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO tagsync_weekly_snapshots
			(id, subject_id, week, year, native_labels, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_id, week, year) DO UPDATE SET
			native_labels = EXCLUDED.native_labels,
			captured_at = EXCLUDED.captured_at
		RETURNING id
	`, snap.ID, snap.SubjectID, snap.Week, snap.Year, native, snap.CapturedAt).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("upsert weekly snapshot: %w", err)
	}
	return nil
}

func (r *WeeklySnapshotRepo) GetForWeek(ctx context.Context, subjectID string, week, year int) (*domain.WeeklySnapshot, error) {
	snap := &domain.WeeklySnapshot{}
	var native []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, week, year, native_labels, captured_at
		FROM tagsync_weekly_snapshots
		WHERE subject_id = $1 AND week = $2 AND year = $3
	`, subjectID, week, year).Scan(
		&snap.ID, &snap.SubjectID, &snap.Week, &snap.Year, &native, &snap.CapturedAt,
	)
	if err == sql.ErrNoRows {
		return nil, monitor.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly snapshot: %w", err)
	}
	if err := json.Unmarshal(native, &snap.NativeLabels); err != nil {
		return nil, fmt.Errorf("decode native labels: %w", err)
	}
	return snap, nil
}

func (r *WeeklySnapshotRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tagsync_weekly_snapshots WHERE captured_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune weekly snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
