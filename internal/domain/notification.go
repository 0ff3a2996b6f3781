package domain

import "time"

// CriticalPriority is the monitoring tier of a critical label entry.
type CriticalPriority string

const (
	PriorityCritical CriticalPriority = "CRITICAL"
	PriorityMedium   CriticalPriority = "MEDIUM"
	PriorityLow      CriticalPriority = "LOW"
)

// CriticalLabel is an externally-owned label name registered for change
// monitoring. Admin-managed, independent lifecycle.
type CriticalLabel struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Priority    CriticalPriority `json:"priority" db:"priority"`
	Active      bool             `json:"active" db:"active"`
	CreatedBy   string           `json:"created_by" db:"created_by"`
	Description string           `json:"description" db:"description"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// ChangeType enumerates the direction of a detected label change.
type ChangeType string

const (
	ChangeAdded   ChangeType = "ADDED"
	ChangeRemoved ChangeType = "REMOVED"
)

// ChangeNotification aggregates one detected change across subjects:
// "label X was added/removed for N subjects in week W/Y". At most one
// notification exists per (label, change type, week, year).
type ChangeNotification struct {
	ID            string         `json:"id" db:"id"`
	Label         string         `json:"label" db:"label"`
	ChangeType    ChangeType     `json:"change_type" db:"change_type"`
	Week          int            `json:"week" db:"week"`
	Year          int            `json:"year" db:"year"`
	AffectedCount int            `json:"affected_count" db:"affected_count"`
	Priority      CriticalPriority `json:"priority" db:"priority"`
	Read          bool           `json:"read" db:"read"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	Details       []ChangeDetail `json:"details,omitempty"`
}

// ChangeDetail is one affected subject within a change notification,
// including the subject's full native label set at detection time.
type ChangeDetail struct {
	ID             string    `json:"id" db:"id"`
	NotificationID string    `json:"notification_id" db:"notification_id"`
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	SubjectName    string    `json:"subject_name" db:"subject_name"`
	SubjectEmail   string    `json:"subject_email" db:"subject_email"`
	Product        string    `json:"product" db:"product"`
	Cohort         string    `json:"cohort" db:"cohort"`
	NativeLabels   []string  `json:"native_labels"`
	DetectedAt     time.Time `json:"detected_at" db:"detected_at"`
}
