package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/diresa-ti/legajos/internal/document"
	"github.com/diresa-ti/legajos/internal/user"
)

// doMultipart posts a multipart body with an optional file part named
// `archivo` and an optional `descripcion` field.
func (env *testEnv) doMultipart(t *testing.T, path, token, fileName, contentType, payload, description string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="archivo"; filename="`+fileName+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := io.Copy(part, strings.NewReader(payload)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if description != "" {
		if err := mw.WriteField("descripcion", description); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestDocumentUpload(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", token,
		"titulo.pdf", "application/pdf", "%PDF-1.4 contenido", "título universitario")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var doc document.Document
	decodeBody(t, rec, &doc)
	if doc.ID == "" || doc.FileName != "titulo.pdf" || doc.RecordID != legajo.ID {
		t.Errorf("document = %+v", doc)
	}
	if doc.Description != "título universitario" {
		t.Errorf("Description = %q", doc.Description)
	}
}

func TestDocumentUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", token,
		"", "", "", "sin archivo")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDocumentUpload_RejectedExtension(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", token,
		"script.exe", "application/octet-stream", "MZ...", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeUnsupportedType {
		t.Errorf("error code = %q, want %q", code, ErrCodeUnsupportedType)
	}
}

func TestDocumentUpload_ForbiddenForRRHH(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", token,
		"titulo.pdf", "application/pdf", "%PDF-1.4", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestDocumentView(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	admin := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", admin,
		"titulo.pdf", "application/pdf", "%PDF-1.4 contenido", "")
	var doc document.Document
	decodeBody(t, rec, &doc)

	rrhh := env.sessionToken(t, "u-rrhh", user.RoleRRHH)
	rec = env.do(t, http.MethodGet, "/legajos/documento/"+doc.ID+"/ver", rrhh, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "inline") {
		t.Errorf("Content-Disposition = %q, want inline", got)
	}
	if rec.Body.String() != "%PDF-1.4 contenido" {
		t.Errorf("body = %q", rec.Body.String())
	}

	// descargar=1 switches to attachment disposition.
	rec = env.do(t, http.MethodGet, "/legajos/documento/"+doc.ID+"/ver?descargar=1", rrhh, nil)
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", got)
	}
}

func TestDocumentView_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodGet, "/legajos/documento/no-existe/ver", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDocumentDelete(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	admin := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.doMultipart(t, "/legajos/personal/"+legajo.ID+"/documento/subir", admin,
		"titulo.pdf", "application/pdf", "%PDF-1.4", "")
	var doc document.Document
	decodeBody(t, rec, &doc)

	rec = env.do(t, http.MethodPost, "/legajos/documento/"+doc.ID+"/eliminar", admin, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/legajos/personal/"+legajo.ID+"/documentos", admin, nil)
	var listing struct {
		Documents []*document.Document `json:"documents"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Documents) != 0 {
		t.Errorf("documents after delete = %d, want 0", len(listing.Documents))
	}
}
