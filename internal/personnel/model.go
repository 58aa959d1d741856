// Package personnel manages legajos: the master record kept for each
// employee, with soft deletion and filtered pagination.
package personnel

import (
	"time"
)

// Record is one legajo. Deactivation flips Active; rows are only hard-deleted
// by operator tooling, and the schema cascades that deletion to attached
// documents.
type Record struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DNI       string     `json:"dni"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Unit      string     `json:"unit"`
	HireDate  *time.Time `json:"hire_date,omitempty"`
	Active    bool       `json:"active"`
	CreatedBy *string    `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	DNI  string // exact match
	Name string // case-insensitive substring over first and last name
}

// Page is one paginated listing of records.
type Page struct {
	Records []*Record `json:"records"`
	Page    int       `json:"page"`
	Size    int       `json:"size"`
	Total   int       `json:"total"`
}
