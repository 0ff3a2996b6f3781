package domain

import "time"

// Subject is a person tracked across products. The email address is the
// unique key into the external CRM contact record.
type Subject struct {
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	FullName string `json:"full_name" db:"full_name"`
	Cohort   string `json:"cohort" db:"cohort"`

	ManuallyInactivated bool       `json:"manually_inactivated" db:"manually_inactivated"`
	InactivatedAt       *time.Time `json:"inactivated_at" db:"inactivated_at"`
	InactivatedBy       string     `json:"inactivated_by" db:"inactivated_by"`
	InactivationReason  string     `json:"inactivation_reason" db:"inactivation_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Product is a canonical product name/code. It exists only to map an
// enrollment to a normalized product family string.
type Product struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}
