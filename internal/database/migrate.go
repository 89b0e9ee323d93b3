package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_kv_entries.up.sql
var kvEntriesSQL string

// EnsureSchema creates the kv_entries table backing the durable store. The
// SQL is idempotent, so it runs on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasTable(ctx, "kv_entries")
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if exists {
		slog.Debug("database schema already present")
		return nil
	}

	slog.Info("database schema missing kv_entries; applying migration 001")
	if _, err := db.Pool.Exec(ctx, kvEntriesSQL); err != nil {
		return fmt.Errorf("apply kv_entries migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) hasTable(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public'
			  AND table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}
