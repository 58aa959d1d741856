package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/diresa-ti/legajos/internal/user"
)

func TestUserList(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, user.NewUserInput{
		Username: "operador", Password: "clave-larga-1", Role: user.RoleRRHH, Active: true,
	})
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodGet, "/sistemas/usuarios", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var listing struct {
		Users []AccountResponse `json:"users"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Users) != 1 || listing.Users[0].Username != "operador" {
		t.Errorf("users = %+v", listing.Users)
	}

	// The public view never carries credential material.
	body := rec.Body.String()
	for _, leak := range []string{"password", "hash", "two_factor"} {
		if strings.Contains(body, leak) {
			t.Errorf("response leaks %q: %s", leak, body)
		}
	}
}

func TestUserCreate(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/usuarios", token, user.NewUserInput{
		Username: "nuevo",
		Password: "clave-larga-1",
		Role:     user.RoleAdminLegajos,
		Email:    "nuevo@example.org",
		Active:   true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created AccountResponse
	decodeBody(t, rec, &created)
	if created.ID == "" || created.Role != user.RoleAdminLegajos {
		t.Errorf("created = %+v", created)
	}
}

func TestUserCreate_InvalidRole(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/usuarios", token, user.NewUserInput{
		Username: "nuevo", Password: "clave-larga-1", Role: "SuperAdmin", Active: true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUserCreate_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, user.NewUserInput{
		Username: "nuevo", Password: "clave-larga-1", Role: user.RoleRRHH, Active: true,
	})
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/usuarios", token, user.NewUserInput{
		Username: "nuevo", Password: "otra-clave-22", Role: user.RoleRRHH, Active: true,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeDuplicateUser {
		t.Errorf("error code = %q", code)
	}
}

func TestUserCreate_ForbiddenForOtherRoles(t *testing.T) {
	env := newTestEnv(t)

	for _, role := range []string{user.RoleRRHH, user.RoleAdminLegajos} {
		token := env.sessionToken(t, "u-x", role)
		rec := env.do(t, http.MethodPost, "/sistemas/usuarios", token, user.NewUserInput{
			Username: "nuevo", Password: "clave-larga-1", Role: user.RoleRRHH, Active: true,
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("role %s: status = %d, want 403", role, rec.Code)
		}
	}
}

func TestUserUpdate(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.mustCreateUser(t, user.NewUserInput{
		Username: "operador", Password: "clave-larga-1", Role: user.RoleRRHH, Active: true,
	})
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPut, "/sistemas/usuarios/"+seeded.ID, token, user.NewUserInput{
		Username: "operador",
		Password: "clave-larga-1",
		Role:     user.RoleSistemas,
		Active:   false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var updated AccountResponse
	decodeBody(t, rec, &updated)
	if updated.Role != user.RoleSistemas || updated.Active {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUserResetPassword(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.mustCreateUser(t, user.NewUserInput{
		Username: "operador", Password: "clave-larga-1", Role: user.RoleRRHH, Active: true,
	})
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/usuarios/"+seeded.ID+"/reset_password", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ResetPasswordResponse
	decodeBody(t, rec, &resp)
	if resp.TemporaryPassword == "" {
		t.Fatal("expected a temporary password")
	}

	// The old password no longer opens a session.
	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Username: "operador", Password: "clave-larga-1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old password login status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Username: "operador", Password: resp.TemporaryPassword,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("temporary password login status = %d, want 200", rec.Code)
	}
}

func TestUserResetPassword_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/usuarios/no-existe/reset_password", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
