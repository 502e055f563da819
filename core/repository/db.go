package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the registry database handle
type DB struct {
	*sql.DB
}

// NewDB opens and pings a PostgreSQL database
func NewDB(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		command_line TEXT NOT NULL,
		revision TEXT NOT NULL,
		data_path TEXT NOT NULL DEFAULT '',
		output_dir TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		options_json JSONB NOT NULL,
		status TEXT NOT NULL,
		epochs INTEGER NOT NULL DEFAULT 0,
		best_val_loss DOUBLE PRECISION,
		train_seconds DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS run_epochs (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		epoch INTEGER NOT NULL,
		train_loss DOUBLE PRECISION NOT NULL,
		val_loss DOUBLE PRECISION NOT NULL,
		test_loss DOUBLE PRECISION NOT NULL,
		best_val_loss DOUBLE PRECISION NOT NULL,
		is_best BOOLEAN NOT NULL,
		at TIMESTAMPTZ NOT NULL,
		UNIQUE (run_id, epoch)
	)`,
	`CREATE TABLE IF NOT EXISTS run_artifacts (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		uri TEXT NOT NULL,
		meta_json JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the registry tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
