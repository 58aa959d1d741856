package backup

import "time"

// Backup types and statuses recorded in history.
const (
	TypeFull = "FULL"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record is one backup attempt. Type and Status fall back to TypeFull and
// StatusSuccess when the stored row predates those columns.
type Record struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Detail    string    `json:"detail,omitempty"`
	StartedBy *string   `json:"started_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResult is a backup history read. Degraded marks a fail-safe empty
// listing served because the store could not be read.
type HistoryResult struct {
	Backups  []*Record `json:"backups"`
	Degraded bool      `json:"degraded"`
}
