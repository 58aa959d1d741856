package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/diresa-ti/legajos/internal/document"
	"github.com/diresa-ti/legajos/internal/validate"
)

// multipartMemoryLimit caps how much of the multipart body is buffered in
// memory; the rest spills to temporary files.
const multipartMemoryLimit = 4 << 20 // 4 MB

// DocumentHandlers holds dependencies for document HTTP handlers.
type DocumentHandlers struct {
	svc    *document.Service
	logger *slog.Logger
}

// NewDocumentHandlers creates a DocumentHandlers instance.
func NewDocumentHandlers(svc *document.Service, logger *slog.Logger) *DocumentHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandlers{svc: svc, logger: logger}
}

// Upload handles POST /legajos/personal/{id}/documento/subir. The body is
// multipart form data with the file under `archivo` and an optional
// `descripcion` field.
func (h *DocumentHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "cuerpo multipart inválido")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("archivo")
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "el campo archivo es requerido")
		return
	}
	defer file.Close()

	doc, err := h.svc.Upload(r.Context(), actorID(r.Context()), r.PathValue("id"), document.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		Body:        file,
		Description: r.FormValue("descripcion"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, doc)
}

// ListByRecord handles GET /legajos/personal/{id}/documentos.
func (h *DocumentHandlers) ListByRecord(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListByRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"documents": docs})
}

// View handles GET /legajos/documento/{id}/ver. The file streams inline
// with its stored content type; `?descargar=1` switches to attachment
// disposition for a browser download.
func (h *DocumentHandlers) View(w http.ResponseWriter, r *http.Request) {
	doc, body, err := h.svc.GetForDownload(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer body.Close()

	disposition := "inline"
	if r.URL.Query().Get("descargar") == "1" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, doc.FileName))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", doc.SizeBytes))
	}

	if _, err := io.Copy(w, body); err != nil {
		// Headers are already on the wire; all we can do is log.
		h.logger.WarnContext(r.Context(), "document stream interrupted", "error", err, "document_id", doc.ID)
	}
}

// Delete handles POST /legajos/documento/{id}/eliminar. The metadata row is
// soft deleted; the stored blob is retained.
func (h *DocumentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actorID(r.Context()), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps document service errors onto the API error taxonomy.
func (h *DocumentHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrDocumentNotFound), errors.Is(err, document.ErrBlobNotFound):
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "documento no encontrado")
	case errors.Is(err, validate.ErrInvalidExtension), errors.Is(err, validate.ErrInvalidMIMEType):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnsupportedType, "tipo de archivo no permitido")
	case errors.Is(err, validate.ErrFileTooLarge):
		WriteError(w, r.Context(), http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "el archivo excede el tamaño máximo")
	case errors.Is(err, validate.ErrFileTooSmall):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "el archivo está vacío")
	case errors.Is(err, validate.ErrStringTooLong), errors.Is(err, validate.ErrSQLKeyword):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "descripción inválida")
	default:
		h.logger.ErrorContext(r.Context(), "document operation failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
	}
}
