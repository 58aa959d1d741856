package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/middleware"
)

// defaultAuditPageSize is used when a listing request gives no size.
const defaultAuditPageSize = 50

// AuditHandlers holds dependencies for the bitácora endpoints.
type AuditHandlers struct {
	svc         *audit.Service
	broadcaster *audit.Broadcaster
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewAuditHandlers creates an AuditHandlers instance. broadcaster may be
// nil, in which case the stream endpoint answers 503.
func NewAuditHandlers(svc *audit.Service, broadcaster *audit.Broadcaster, logger *slog.Logger) *AuditHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandlers{
		svc:         svc,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// List handles GET /sistemas/auditoria with `page` and `size` parameters.
// Consulting the bitácora is itself an audited event.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r.URL.Query().Get("page"), 1)
	size := parseIntParam(r.URL.Query().Get("size"), defaultAuditPageSize)

	result, err := h.svc.GetLogs(r.Context(), page, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read audit log", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	h.svc.Log(r.Context(), actorID(r.Context()), audit.ModuleAuditoria, "CONSULTA",
		fmt.Sprintf("consulted audit log page %d", page), nil)

	writeJSON(w, r.Context(), http.StatusOK, result)
}

// Export handles GET /sistemas/auditoria/export. Query parameters:
// `formato` (csv, json or cbor; default csv), optional `desde`/`hasta`
// (RFC 3339), `modulo` and `limite`.
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := audit.ExportFormat(q.Get("formato"))
	if format == "" {
		format = audit.ExportFormatCSV
	}
	switch format {
	case audit.ExportFormatCSV, audit.ExportFormatJSON, audit.ExportFormatCBOR:
	default:
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "formato debe ser csv, json o cbor")
		return
	}

	opts := audit.ExportOptions{
		Format: format,
		Module: q.Get("modulo"),
		Limit:  parseIntParam(q.Get("limite"), 0),
	}
	if raw := q.Get("desde"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "desde debe ser una fecha RFC 3339")
			return
		}
		opts.From = t
	}
	if raw := q.Get("hasta"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "hasta debe ser una fecha RFC 3339")
			return
		}
		opts.To = t
	}

	data, err := h.svc.Export(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit export failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	h.svc.Log(r.Context(), actorID(r.Context()), audit.ModuleAuditoria, "EXPORT",
		fmt.Sprintf("exported audit log as %s", format), nil)

	filename := fmt.Sprintf("bitacora_%s.%s", time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "audit export write interrupted", "error", err)
	}
}

// Stream handles GET /sistemas/auditoria/stream: a WebSocket live tail of
// new entries. The connection is read only to detect the client closing.
func (h *AuditHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeInternal, "transmisión no disponible")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)
	h.logger.InfoContext(r.Context(), "audit stream subscriber connected",
		"user_id", middleware.GetUserID(r.Context()),
		"subscribers", h.broadcaster.SubscriberCount(),
	)

	// Drain client frames until the peer disconnects.
	go func() {
		defer func() {
			h.broadcaster.Unsubscribe(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
