package api

import (
	"net/http"
	"testing"

	"github.com/diresa-ti/legajos/internal/request"
	"github.com/diresa-ti/legajos/internal/user"
)

func submitRequest(t *testing.T, env *testEnv, recordID string) *request.Request {
	t.Helper()
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)
	rec := env.do(t, http.MethodPost, "/legajos/solicitudes", token, request.SubmitInput{
		RecordID: recordID,
		Field:    "address",
		NewValue: "Av. Siempre Viva 742",
		Reason:   "mudanza informada por el agente",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var req request.Request
	decodeBody(t, rec, &req)
	return &req
}

func TestRequestSubmit(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))

	req := submitRequest(t, env, legajo.ID)
	if req.Status != request.StatusPending {
		t.Errorf("Status = %q, want %q", req.Status, request.StatusPending)
	}
	if req.RequestedBy == nil || *req.RequestedBy != "u-rrhh" {
		t.Errorf("RequestedBy = %v", req.RequestedBy)
	}
}

func TestRequestSubmit_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-rrhh", user.RoleRRHH)

	rec := env.do(t, http.MethodPost, "/legajos/solicitudes", token, request.SubmitInput{Field: "address"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRequestSubmit_ForbiddenForSistemas(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/legajos/solicitudes", token, request.SubmitInput{
		RecordID: "r-1", Field: "address", NewValue: "x",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequestPending(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	submitRequest(t, env, legajo.ID)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodGet, "/sistemas/solicitudes", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var result request.PendingResult
	decodeBody(t, rec, &result)
	if len(result.Requests) != 1 || result.Degraded {
		t.Errorf("result = %+v", result)
	}
}

func TestRequestProcess_Approve(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	pending := submitRequest(t, env, legajo.ID)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/solicitudes/"+pending.ID+"/procesar", token,
		ProcessRequestBody{Action: "aprobar"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var processed request.Request
	decodeBody(t, rec, &processed)
	if processed.Status != request.StatusApproved {
		t.Errorf("Status = %q, want %q", processed.Status, request.StatusApproved)
	}
	if processed.DecidedBy == nil || *processed.DecidedBy != "u-sist" {
		t.Errorf("DecidedBy = %v", processed.DecidedBy)
	}
}

func TestRequestProcess_Twice(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	pending := submitRequest(t, env, legajo.ID)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	path := "/sistemas/solicitudes/" + pending.ID + "/procesar"
	env.do(t, http.MethodPost, path, token, ProcessRequestBody{Action: "rechazar"})

	rec := env.do(t, http.MethodPost, path, token, ProcessRequestBody{Action: "aprobar"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeAlreadyProcessed {
		t.Errorf("error code = %q", code)
	}
}

func TestRequestProcess_InvalidAction(t *testing.T) {
	env := newTestEnv(t)
	legajo := env.mustRegisterRecord(t, legajoInput("30111222"))
	pending := submitRequest(t, env, legajo.ID)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/solicitudes/"+pending.ID+"/procesar", token,
		ProcessRequestBody{Action: "posponer"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRequestProcess_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.sessionToken(t, "u-sist", user.RoleSistemas)

	rec := env.do(t, http.MethodPost, "/sistemas/solicitudes/no-existe/procesar", token,
		ProcessRequestBody{Action: "aprobar"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
