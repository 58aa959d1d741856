package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/diresa-ti/legajos/internal/personnel"
	"github.com/diresa-ti/legajos/internal/user"
)

func legajoInput(dni string) personnel.Input {
	return personnel.Input{
		FirstName: "Juan",
		LastName:  "Pérez",
		DNI:       dni,
		Email:     "jperez+" + dni + "@example.org",
		Unit:      "Logística",
	}
}

func TestPersonnelCreate(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.do(t, http.MethodPost, "/legajos/personal", token, legajoInput("30111222"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created personnel.Record
	decodeBody(t, rec, &created)
	if created.ID == "" || created.DNI != "30111222" {
		t.Errorf("created = %+v", created)
	}
}

func TestPersonnelCreate_ForbiddenForRRHH(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodPost, "/legajos/personal", token, legajoInput("30111222"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestPersonnelCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	in := legajoInput("30111222")
	in.DNI = ""
	rec := env.do(t, http.MethodPost, "/legajos/personal", token, in)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeValidation {
		t.Errorf("error code = %q", code)
	}
}

func TestPersonnelCreate_DuplicateDNI(t *testing.T) {
	env := newTestEnv(t)
	env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	in := legajoInput("30111222")
	in.Email = "otro@example.org"
	rec := env.do(t, http.MethodPost, "/legajos/personal", token, in)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeDuplicateDNI {
		t.Errorf("error code = %q, want %q", code, ErrCodeDuplicateDNI)
	}
}

func TestPersonnelGet(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodGet, "/legajos/personal/"+seeded.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got personnel.Record
	decodeBody(t, rec, &got)
	if got.ID != seeded.ID {
		t.Errorf("ID = %q, want %q", got.ID, seeded.ID)
	}
}

func TestPersonnelGet_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodGet, "/legajos/personal/no-existe", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPersonnelList_Pagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 20; i++ {
		env.mustRegisterRecord(t, legajoInput(fmt.Sprintf("301112%02d", i)))
	}
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodGet, "/legajos/personal?page=2&size=15", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var page personnel.Page
	decodeBody(t, rec, &page)
	if page.Total != 20 || page.Page != 2 || len(page.Records) != 5 {
		t.Errorf("page = %d/%d with %d records, want 2, total 20, 5 records",
			page.Page, page.Total, len(page.Records))
	}
}

func TestPersonnelList_FilterByDNI(t *testing.T) {
	env := newTestEnv(t)
	env.mustRegisterRecord(t, legajoInput("30111222"))
	env.mustRegisterRecord(t, legajoInput("30999888"))
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodGet, "/legajos/personal?dni=30999888", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var page personnel.Page
	decodeBody(t, rec, &page)
	if len(page.Records) != 1 || page.Records[0].DNI != "30999888" {
		t.Errorf("records = %+v", page.Records)
	}
}

func TestPersonnelUpdate(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	in := legajoInput("30111222")
	in.Unit = "Sistemas"
	rec := env.do(t, http.MethodPut, "/legajos/personal/"+seeded.ID, token, in)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got personnel.Record
	decodeBody(t, rec, &got)
	if got.Unit != "Sistemas" {
		t.Errorf("Unit = %q, want Sistemas", got.Unit)
	}
}

func TestPersonnelDeactivate(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.mustRegisterRecord(t, legajoInput("30111222"))
	token := env.sessionToken(t, "u-admin", user.RoleAdminLegajos)

	rec := env.do(t, http.MethodDelete, "/legajos/personal/"+seeded.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// The record survives as inactive and drops out of listings.
	rec = env.do(t, http.MethodGet, "/legajos/personal/"+seeded.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status after deactivation = %d", rec.Code)
	}
	var got personnel.Record
	decodeBody(t, rec, &got)
	if got.Active {
		t.Error("expected Active = false after deactivation")
	}

	rec = env.do(t, http.MethodGet, "/legajos/personal", token, nil)
	var page personnel.Page
	decodeBody(t, rec, &page)
	if page.Total != 0 {
		t.Errorf("listing total = %d, want 0", page.Total)
	}
}

func TestPersonnel_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/legajos/personal", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
