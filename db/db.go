package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database within %v: %w (close also failed: %v)", timeout, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

// schema is idempotent; Migrate runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		first_name  TEXT NOT NULL DEFAULT '',
		last_name   TEXT NOT NULL DEFAULT '',
		nickname    TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tournaments (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		name        TEXT NOT NULL,
		start_date  TIMESTAMPTZ NOT NULL,
		end_date    TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL,
		categories  JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT tournaments_tenant_id_name_key UNIQUE (tenant_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tournaments_status_start ON tournaments (status, start_date)`,
	`CREATE TABLE IF NOT EXISTS brackets (
		id             TEXT PRIMARY KEY,
		tournament_id  TEXT NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
		category_id    TEXT NOT NULL,
		status         TEXT NOT NULL,
		matches        JSONB NOT NULL,
		version        INTEGER NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT brackets_tournament_id_category_id_key UNIQUE (tournament_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_stages (
		id             TEXT PRIMARY KEY,
		tournament_id  TEXT NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
		category_id    TEXT NOT NULL,
		status         TEXT NOT NULL,
		groups         JSONB NOT NULL,
		version        INTEGER NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT group_stages_tournament_id_category_id_key UNIQUE (tournament_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS player_rankings (
		user_id             TEXT NOT NULL,
		tenant_id           TEXT NOT NULL,
		elo_score           INTEGER NOT NULL,
		matches_played      INTEGER NOT NULL DEFAULT 0,
		matches_won         INTEGER NOT NULL DEFAULT 0,
		tournament_matches  INTEGER NOT NULL DEFAULT 0,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, tenant_id)
	)`,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
