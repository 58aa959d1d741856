// Package document manages the files attached to a legajo: upload with type
// and size validation, download, and soft deletion. File bytes live in a
// blob store; only metadata is kept in the database.
package document

import "time"

// Document is the metadata row for one stored file. StorageKey locates the
// bytes in the blob store and never changes after upload.
type Document struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"record_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"-"`
	Description string    `json:"description,omitempty"`
	UploadedBy  *string   `json:"uploaded_by,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
