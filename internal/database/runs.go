package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

// RecordRun inserts or replaces a load run summary.
func (db *DB) RecordRun(ctx context.Context, run *store.Run) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO load_runs
		(id, started_at, finished_at, inserted, updated, errors, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), article.FormatTime(run.StartedAt), article.FormatTime(run.FinishedAt),
		run.Inserted, run.Updated, run.Errors, run.Status,
	)
	if err != nil {
		return fmt.Errorf("recording load run: %w", err)
	}
	return nil
}

// GetLastRun returns the most recently started load run, or nil.
func (db *DB) GetLastRun(ctx context.Context) (*store.Run, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, inserted, updated, errors, status
		FROM load_runs ORDER BY started_at DESC LIMIT 1`,
	)

	var r store.Run
	var id, started, finished string
	if err := row.Scan(&id, &started, &finished, &r.Inserted, &r.Updated, &r.Errors, &r.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing run id %q: %w", id, err)
	}
	r.StartedAt, _ = time.Parse(article.TimeLayout, started)
	r.FinishedAt, _ = time.Parse(article.TimeLayout, finished)
	return &r, nil
}
