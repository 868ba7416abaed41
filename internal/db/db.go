package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	return &DB{conn}, nil
}

// EnsureSchema creates the jobs table if it does not exist yet. The API
// layer owns row creation and deletion; this only guarantees the table is
// present for a standalone deployment.
func (db *DB) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS jobs (
			job_id          TEXT PRIMARY KEY,
			status          TEXT NOT NULL DEFAULT 'in_queue',
			progress        INTEGER NOT NULL DEFAULT 0,
			queue_position  INTEGER NOT NULL DEFAULT 0,
			request_data    TEXT NOT NULL,
			output_filename TEXT,
			error_message   TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			start_time      TIMESTAMPTZ
		)
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure jobs table: %w", err)
	}
	return nil
}
