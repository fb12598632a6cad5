package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed schema.sql
var schemaSQL string

// bootstrapLockKey serializes concurrent Bootstrap calls from several instances.
const bootstrapLockKey = 7_420_011

// Bootstrap applies the embedded schema. Every statement is idempotent, so
// it runs on each process start before the server accepts requests.
func Bootstrap(ctx context.Context, db *DB) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", bootstrapLockKey); err != nil {
		return fmt.Errorf("acquire bootstrap lock: %w", err)
	}
	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}

	slog.Info("database schema applied")
	return nil
}
