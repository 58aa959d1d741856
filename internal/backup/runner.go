// Package backup orchestrates database backups: running pg_dump, recording
// the outcome in a history table, and optionally shipping the dump to
// object storage.
package backup

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner produces one database dump at the given path.
type Runner interface {
	Run(ctx context.Context, databaseName, outputPath string) error
}

// PgDumpRunner shells out to pg_dump in custom format. Connection settings
// beyond the database name come from the standard PG* environment.
type PgDumpRunner struct {
	// Binary overrides the pg_dump executable. Empty means $PATH lookup.
	Binary string
}

// Run executes pg_dump for databaseName into outputPath.
func (r *PgDumpRunner) Run(ctx context.Context, databaseName, outputPath string) error {
	bin := r.Binary
	if bin == "" {
		bin = "pg_dump"
	}

	cmd := exec.CommandContext(ctx, bin, "--format=custom", "--file="+outputPath, databaseName)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pg_dump failed: %w: %s", err, string(out))
	}
	return nil
}
