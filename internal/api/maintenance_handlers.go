package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/diresa-ti/legajos/internal/backup"
)

// defaultBackupHistoryLimit bounds the history listing.
const defaultBackupHistoryLimit = 100

// MaintenanceHandlers holds dependencies for the backup endpoints.
type MaintenanceHandlers struct {
	svc    *backup.Service
	logger *slog.Logger
}

// NewMaintenanceHandlers creates a MaintenanceHandlers instance.
func NewMaintenanceHandlers(svc *backup.Service, logger *slog.Logger) *MaintenanceHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceHandlers{svc: svc, logger: logger}
}

// RunBackup handles POST /sistemas/mantenimiento/run_backup. The dump runs
// synchronously; the response carries the resulting history record.
func (h *MaintenanceHandlers) RunBackup(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ExecuteFullBackup(r.Context(), actorID(r.Context()))
	if err != nil {
		if errors.Is(err, backup.ErrNoDatabaseName) {
			WriteError(w, r.Context(), http.StatusConflict, ErrCodeBackupNotConfigured,
				"no hay base de datos configurada para backup")
			return
		}
		// The failure is already recorded in the history; surface it with
		// the failed record attached so the dashboard can show the detail.
		h.logger.ErrorContext(r.Context(), "backup run failed", "error", err)
		writeJSON(w, r.Context(), http.StatusInternalServerError, map[string]any{
			"error":  ErrorDetail{Code: ErrCodeInternal, Message: "el backup falló"},
			"record": rec,
		})
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, rec)
}

// History handles GET /sistemas/mantenimiento/backups. A history store
// outage yields an empty listing flagged as degraded rather than an error.
func (h *MaintenanceHandlers) History(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r.URL.Query().Get("limite"), defaultBackupHistoryLimit)
	result := h.svc.History(r.Context(), limit)
	writeJSON(w, r.Context(), http.StatusOK, result)
}
