package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/service/protection"
)

// LabelSnapshotRepo implements protection.Repository against PostgreSQL.
// The snapshot row is rolling state; history rows are append-only.
type LabelSnapshotRepo struct{ db *sql.DB }

// NewLabelSnapshotRepo creates a Postgres-backed label snapshot repository.
func NewLabelSnapshotRepo(db *sql.DB) *LabelSnapshotRepo { return &LabelSnapshotRepo{db: db} }

func (r *LabelSnapshotRepo) Get(ctx context.Context, subjectID string) (*domain.LabelSnapshot, error) {
	snap := &domain.LabelSnapshot{}
	var native, system []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, native_labels, system_labels,
		       captured_at, last_sync_at, sync_count
		FROM tagsync_label_snapshots
		WHERE subject_id = $1
	`, subjectID).Scan(
		&snap.ID, &snap.SubjectID, &native, &system,
		&snap.CapturedAt, &snap.LastSyncAt, &snap.SyncCount,
	)
	if err == sql.ErrNoRows {
		return nil, protection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get label snapshot: %w", err)
	}
	if err := json.Unmarshal(native, &snap.NativeLabels); err != nil {
		return nil, fmt.Errorf("decode native labels: %w", err)
	}
	if err := json.Unmarshal(system, &snap.SystemLabels); err != nil {
		return nil, fmt.Errorf("decode system labels: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, action, labels, COALESCE(source,'')
		FROM tagsync_label_snapshot_history
		WHERE snapshot_id = $1
		ORDER BY created_at
	`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h domain.HistoryEntry
		var labels []byte
		if err := rows.Scan(&h.ID, &h.Timestamp, &h.Action, &labels, &h.Source); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal(labels, &h.Labels); err != nil {
			return nil, fmt.Errorf("decode history labels: %w", err)
		}
		snap.History = append(snap.History, h)
	}
	return snap, rows.Err()
}

func (r *LabelSnapshotRepo) Upsert(ctx context.Context, snap *domain.LabelSnapshot, newHistory []domain.HistoryEntry) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	native, err := json.Marshal(snap.NativeLabels)
	if err != nil {
		return fmt.Errorf("encode native labels: %w", err)
	}
	system, err := json.Marshal(snap.SystemLabels)
	if err != nil {
		return fmt.Errorf("encode system labels: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT keeps the existing row id so history stays attached.
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tagsync_label_snapshots
			(id, subject_id, native_labels, system_labels, captured_at, last_sync_at, sync_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject_id) DO UPDATE SET
			native_labels = EXCLUDED.native_labels,
			system_labels = EXCLUDED.system_labels,
			last_sync_at = EXCLUDED.last_sync_at,
			sync_count = EXCLUDED.sync_count
		RETURNING id
	`, snap.ID, snap.SubjectID, native, system,
		snap.CapturedAt, snap.LastSyncAt, snap.SyncCount).Scan(&snap.ID)
	if err != nil {
		return fmt.Errorf("upsert label snapshot: %w", err)
	}

	for i := range newHistory {
		h := &newHistory[i]
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		labels, err := json.Marshal(h.Labels)
		if err != nil {
			return fmt.Errorf("encode history labels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tagsync_label_snapshot_history
				(id, snapshot_id, subject_id, action, labels, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, h.ID, snap.ID, snap.SubjectID, h.Action, labels, h.Source, h.Timestamp); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
	return tx.Commit()
}
