package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	repo := NewInMemoryRepository()
	svc := NewService(repo, slog.Default(), nil)
	ctx := context.Background()

	userID := "user-1"
	svc.Log(ctx, &userID, ModuleLegajos, "ALTA", "created record 7", map[string]any{"dni": "12345678"})
	svc.Log(ctx, nil, ModuleMantenimiento, "BACKUP", "full backup", nil)
	svc.Log(ctx, &userID, ModuleLegajos, "BAJA", "deactivated record 7", nil)
	return svc
}

func TestExport_CSV(t *testing.T) {
	svc := seededService(t)

	data, err := svc.Export(context.Background(), ExportOptions{Format: ExportFormatCSV})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported CSV: %v", err)
	}
	// Header plus three entries
	if len(records) != 4 {
		t.Fatalf("expected 4 CSV records, got %d", len(records))
	}
	if records[0][2] != "module" {
		t.Errorf("unexpected header: %v", records[0])
	}
	// Newest first
	if records[1][3] != "BAJA" {
		t.Errorf("expected newest entry first, got action %q", records[1][3])
	}
}

func TestExport_JSON(t *testing.T) {
	svc := seededService(t)

	data, err := svc.Export(context.Background(), ExportOptions{Format: ExportFormatJSON})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("failed to parse exported JSON: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestExport_CBOR(t *testing.T) {
	svc := seededService(t)

	data, err := svc.Export(context.Background(), ExportOptions{Format: ExportFormatCBOR})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	var entries []*Entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		t.Fatalf("failed to parse exported CBOR: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestExport_ModuleFilterAndLimit(t *testing.T) {
	svc := seededService(t)

	data, err := svc.Export(context.Background(), ExportOptions{
		Format: ExportFormatJSON,
		Module: ModuleLegajos,
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("failed to parse exported JSON: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Module != ModuleLegajos {
		t.Errorf("expected module %q, got %q", ModuleLegajos, entries[0].Module)
	}
}

func TestExport_TimeRange(t *testing.T) {
	svc := seededService(t)

	// Everything was appended just now; a window ending in the past must be empty.
	data, err := svc.Export(context.Background(), ExportOptions{
		Format: ExportFormatJSON,
		To:     time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("failed to parse exported JSON: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries before the window, got %d", len(entries))
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	svc := seededService(t)

	if _, err := svc.Export(context.Background(), ExportOptions{Format: "xml"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}
