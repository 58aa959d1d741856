// Package request handles change requests: employees ask for a correction
// to their legajo, and HR approves or rejects it. Requests are terminal
// after the first decision.
package request

import "time"

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Decisions accepted by Process.
const (
	DecisionApprove = "aprobar"
	DecisionReject  = "rechazar"
)

// Request is one change request against a legajo.
type Request struct {
	ID          string     `json:"id"`
	RecordID    string     `json:"record_id"`
	RequestedBy *string    `json:"requested_by,omitempty"`
	Field       string     `json:"field"`
	NewValue    string     `json:"new_value"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	DecidedBy   *string    `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PendingResult is a pending-requests read. Degraded marks a fail-safe
// empty listing served because the store could not be read.
type PendingResult struct {
	Requests []*Request `json:"requests"`
	Degraded bool       `json:"degraded"`
}
