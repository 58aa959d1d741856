//go:build integration

// Package integration_test exercises the Postgres repositories against a
// real database started with testcontainers.
//
// Run with: go test -tags=integration -v ./internal/integration/...
// Docker must be available; the suite skips otherwise.
package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/auth"
	"github.com/diresa-ti/legajos/internal/personnel"
	"github.com/diresa-ti/legajos/internal/request"
	"github.com/diresa-ti/legajos/internal/user"
)

// startPostgres brings up a disposable Postgres with the migrations applied.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("legajos"),
		postgres.WithUsername("legajos"),
		postgres.WithPassword("legajos"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("could not start postgres container (is Docker running?): %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()

	files, err := filepath.Glob("../../migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no migration files found")
	}
	sort.Strings(files)

	for _, f := range files {
		ddl, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			t.Fatalf("apply %s: %v", filepath.Base(f), err)
		}
	}
}

func TestPersonnelRepository(t *testing.T) {
	db := startPostgres(t)
	repo := personnel.NewPostgresRepository(db)
	ctx := context.Background()

	rec := &personnel.Record{
		FirstName: "Juan",
		LastName:  "Pérez",
		DNI:       "30111222",
		Email:     "jperez@example.org",
		Unit:      "Logística",
		Active:    true,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.DNI != "30111222" || got.Unit != "Logística" {
		t.Errorf("got = %+v", got)
	}

	// A second row with the same DNI must map to the domain error.
	dup := &personnel.Record{
		FirstName: "Otra", LastName: "Persona", DNI: "30111222",
		Email: "otra@example.org", Active: true,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, personnel.ErrDuplicateDNI) {
		t.Errorf("Create(duplicate dni) error = %v, want ErrDuplicateDNI", err)
	}
	dup.DNI = "30999888"
	dup.Email = "JPEREZ@example.org"
	if err := repo.Create(ctx, dup); !errors.Is(err, personnel.ErrDuplicateEmail) {
		t.Errorf("Create(duplicate email) error = %v, want ErrDuplicateEmail", err)
	}

	if err := repo.SoftDelete(ctx, rec.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	records, total, err := repo.List(ctx, personnel.Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 0 || len(records) != 0 {
		t.Errorf("after soft delete: total = %d, records = %d", total, len(records))
	}
}

func TestUserRepository(t *testing.T) {
	db := startPostgres(t)
	repo := user.NewPostgresRepository(db)
	ctx := context.Background()

	hash, err := auth.HashPassword("clave-larga-1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u := &user.User{
		Username:     "MGarcia",
		PasswordHash: hash,
		Role:         user.RoleSistemas,
		Active:       true,
		Email:        "mgarcia@example.org",
	}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Lookup is case-insensitive.
	got, err := repo.FindByUsername(ctx, "mgarcia")
	if err != nil {
		t.Fatalf("FindByUsername() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}

	dup := &user.User{
		Username: "mgarcia", PasswordHash: hash, Role: user.RoleRRHH, Active: true,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, user.ErrDuplicateUser) {
		t.Errorf("Create(duplicate username) error = %v, want ErrDuplicateUser", err)
	}

	code := time.Now().Add(5 * time.Minute).UTC()
	if err := repo.SetOneTimeCode(ctx, u.ID, "code-hash", code); err != nil {
		t.Fatalf("SetOneTimeCode() error = %v", err)
	}
	got, err = repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.TwoFactorHash == nil || *got.TwoFactorHash != "code-hash" {
		t.Errorf("TwoFactorHash = %v", got.TwoFactorHash)
	}
	if err := repo.ClearOneTimeCode(ctx, u.ID); err != nil {
		t.Fatalf("ClearOneTimeCode() error = %v", err)
	}
}

func TestAuditRepository(t *testing.T) {
	db := startPostgres(t)
	repo := audit.NewPostgresRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, audit.NewEntry{
			Module:      audit.ModuleLegajos,
			Action:      "ALTA",
			Description: "seeded",
			Detail:      map[string]any{"n": i},
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, total, err := repo.Paginate(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if total != 3 || len(entries) != 2 {
		t.Errorf("total = %d, entries = %d; want 3 and 2", total, len(entries))
	}

	ranged, err := repo.QueryRange(ctx, time.Time{}, time.Time{}, audit.ModuleLegajos, 0)
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}
	if len(ranged) != 3 {
		t.Errorf("ranged = %d, want 3", len(ranged))
	}
	if ranged[0].Detail == nil {
		t.Error("expected detail to round-trip through jsonb")
	}
}

func TestRequestRepository(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	legajos := personnel.NewPostgresRepository(db)
	rec := &personnel.Record{
		FirstName: "Juan", LastName: "Pérez", DNI: "30111222", Active: true,
	}
	if err := legajos.Create(ctx, rec); err != nil {
		t.Fatalf("Create(record) error = %v", err)
	}

	repo := request.NewPostgresRepository(db)
	req := &request.Request{
		RecordID: rec.ID,
		Field:    "address",
		NewValue: "Av. Siempre Viva 742",
	}
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pending, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	decider := "u-sist"
	if err := repo.Decide(ctx, req.ID, request.StatusApproved, &decider, time.Now().UTC()); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	// A second decision must lose.
	err = repo.Decide(ctx, req.ID, request.StatusRejected, &decider, time.Now().UTC())
	if !errors.Is(err, request.ErrRequestAlreadyProcessed) {
		t.Errorf("Decide(again) error = %v, want ErrRequestAlreadyProcessed", err)
	}
}
