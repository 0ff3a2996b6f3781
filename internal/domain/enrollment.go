package domain

import "time"

// EnrollmentStatus enumerates the lifecycle states of an enrollment.
// Transitions are driven by upstream ingestion; this engine never changes them.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	EnrollmentExpired   EnrollmentStatus = "expired"
	EnrollmentInactive  EnrollmentStatus = "inactive"
)

// MembershipStatus is the state in the secondary membership system, for
// product families that have one.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipNone     MembershipStatus = "none"
)

// EngagementMetrics are the behavioral metrics refreshed by the upstream
// sync step before evaluation runs.
type EngagementMetrics struct {
	DaysSinceLogin  int `json:"days_since_login" db:"days_since_login"`
	DaysSinceAction int `json:"days_since_action" db:"days_since_action"`
	Logins30d       int `json:"logins_30d" db:"logins_30d"`
	ActiveWeeks30d  int `json:"active_weeks_30d" db:"active_weeks_30d"`
}

// ModuleProgress is one content module's completion state, ordered by Sequence.
type ModuleProgress struct {
	Name           string     `json:"name"`
	Sequence       int        `json:"sequence"`
	CompletedPages int        `json:"completed_pages"`
	TotalPages     int        `json:"total_pages"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether every page of the module is done.
func (m ModuleProgress) Completed() bool {
	return m.TotalPages > 0 && m.CompletedPages >= m.TotalPages
}

// Enrollment is one subject's relationship to one product.
type Enrollment struct {
	ID        string           `json:"id" db:"id"`
	SubjectID string           `json:"subject_id" db:"subject_id"`
	ProductID string           `json:"product_id" db:"product_id"`
	Status    EnrollmentStatus `json:"status" db:"status"`

	Engagement    EngagementMetrics `json:"engagement"`
	CompletionPct float64           `json:"completion_pct" db:"completion_pct"`
	Modules       []ModuleProgress  `json:"modules,omitempty"`

	Refunded         bool             `json:"refunded" db:"refunded"`
	MembershipStatus MembershipStatus `json:"membership_status" db:"membership_status"`
	ReactivatedAt    *time.Time       `json:"reactivated_at" db:"reactivated_at"`

	// SyncedLabels is the last known label state on the external CRM.
	// Updated only by the sync apply step.
	SyncedLabels []string   `json:"synced_labels"`
	LastSyncedAt *time.Time `json:"last_synced_at" db:"last_synced_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
