package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports entries as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports entries as a JSON array.
	ExportFormatJSON ExportFormat = "json"
	// ExportFormatCBOR exports entries as a CBOR array, for compact
	// machine-to-machine handoff to downstream compliance tooling.
	ExportFormatCBOR ExportFormat = "cbor"
)

// ExportOptions configures audit log export parameters.
type ExportOptions struct {
	Format ExportFormat // csv, json or cbor
	From   time.Time    // Start of time range, inclusive (zero = unbounded)
	To     time.Time    // End of time range, inclusive (zero = unbounded)
	Module string       // Filter by module (optional)
	Limit  int          // Maximum number of entries (0 = no limit)
}

// ContentType returns the MIME type for the export format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv; charset=utf-8"
	case ExportFormatJSON:
		return "application/json; charset=utf-8"
	case ExportFormatCBOR:
		return "application/cbor"
	default:
		return "application/octet-stream"
	}
}

// Export returns the matching slice of the log serialized in the requested
// format.
func (s *Service) Export(ctx context.Context, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatCBOR:
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}

	entries, err := s.repo.QueryRange(ctx, opts.From, opts.To, opts.Module, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for export: %w", err)
	}

	switch opts.Format {
	case ExportFormatCSV:
		return exportToCSV(entries)
	case ExportFormatJSON:
		return json.Marshal(entries)
	default:
		return cbor.Marshal(entries)
	}
}

// exportToCSV flattens the structured detail map into a JSON column so no
// information is lost in the tabular form.
func exportToCSV(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "user_id", "module", "action", "description", "detail", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		userID := ""
		if e.UserID != nil {
			userID = *e.UserID
		}
		detail := ""
		if e.Detail != nil {
			b, err := json.Marshal(e.Detail)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal detail for entry %s: %w", e.ID, err)
			}
			detail = string(b)
		}
		record := []string{
			e.ID,
			userID,
			e.Module,
			e.Action,
			e.Description,
			detail,
			strconv.FormatInt(e.CreatedAt.Unix(), 10),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}
