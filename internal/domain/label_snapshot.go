package domain

import "time"

// HistoryAction enumerates the kinds of label snapshot history entries.
type HistoryAction string

const (
	HistoryAdded          HistoryAction = "ADDED"
	HistoryRemoved        HistoryAction = "REMOVED"
	HistoryInitialCapture HistoryAction = "INITIAL_CAPTURE"
)

// HistoryEntry is one append-only audit record on a label snapshot.
type HistoryEntry struct {
	ID        string        `json:"id" db:"id"`
	Timestamp time.Time     `json:"timestamp" db:"created_at"`
	Action    HistoryAction `json:"action" db:"action"`
	Labels    []string      `json:"labels"`
	Source    string        `json:"source" db:"source"`
}

// LabelSnapshot is the rolling, always-current audit record of a
// subject's labels on the external CRM. NativeLabels is the protected
// set; SystemLabels is kept for reference only.
type LabelSnapshot struct {
	ID           string         `json:"id" db:"id"`
	SubjectID    string         `json:"subject_id" db:"subject_id"`
	NativeLabels []string       `json:"native_labels"`
	SystemLabels []string       `json:"system_labels"`
	CapturedAt   time.Time      `json:"captured_at" db:"captured_at"`
	LastSyncAt   time.Time      `json:"last_sync_at" db:"last_sync_at"`
	SyncCount    int            `json:"sync_count" db:"sync_count"`
	History      []HistoryEntry `json:"history,omitempty"`
}

// WeeklySnapshot is a time-bucketed capture of a subject's native label
// set, one row per subject per ISO week, used for week-over-week diffing.
type WeeklySnapshot struct {
	ID           string    `json:"id" db:"id"`
	SubjectID    string    `json:"subject_id" db:"subject_id"`
	Week         int       `json:"week" db:"week"`
	Year         int       `json:"year" db:"year"`
	NativeLabels []string  `json:"native_labels"`
	CapturedAt   time.Time `json:"captured_at" db:"captured_at"`
}
