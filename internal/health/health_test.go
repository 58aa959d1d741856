package health

import (
	"context"
	"errors"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error {
	return s.err
}

func TestRegistry_AllHealthy(t *testing.T) {
	reg := NewRegistry()
	reg.Register("database", stubChecker{})
	reg.Register("redis", stubChecker{})

	report := reg.Check(context.Background())

	if !report.Ready {
		t.Error("expected ready report when all checks pass")
	}
	if report.Details["database"] != "ok" {
		t.Errorf("database detail = %q, want ok", report.Details["database"])
	}
	if report.Details["redis"] != "ok" {
		t.Errorf("redis detail = %q, want ok", report.Details["redis"])
	}
}

func TestRegistry_OneFailing(t *testing.T) {
	reg := NewRegistry()
	reg.Register("database", stubChecker{})
	reg.Register("redis", stubChecker{err: errors.New("connection refused")})

	report := reg.Check(context.Background())

	if report.Ready {
		t.Error("expected not-ready report when a check fails")
	}
	if report.Details["database"] != "ok" {
		t.Errorf("database detail = %q, want ok", report.Details["database"])
	}
	if report.Details["redis"] != "connection refused" {
		t.Errorf("redis detail = %q, want the error message", report.Details["redis"])
	}
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()

	report := reg.Check(context.Background())

	if !report.Ready {
		t.Error("expected ready report with no registered checkers")
	}
	if len(report.Details) != 0 {
		t.Errorf("expected no details, got %v", report.Details)
	}
}

func TestRegistry_ReplacesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("database", stubChecker{err: errors.New("down")})
	reg.Register("database", stubChecker{})

	report := reg.Check(context.Background())

	if !report.Ready {
		t.Error("expected the replacement checker to win")
	}
}
