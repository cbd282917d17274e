package database

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/habrpipe/internal/store"
)

// Stats returns aggregate statistics over the stored articles.
func (db *DB) Stats(ctx context.Context) (*store.Stats, error) {
	var s store.Stats

	if err := db.conn.QueryRowContext(ctx, store.QueryTotal).Scan(&s.TotalArticles); err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, store.QueryDateRange).Scan(&s.EarliestPublished, &s.LatestPublished); err != nil {
		return nil, fmt.Errorf("reading date range: %w", err)
	}

	var err error
	if s.TopAuthors, err = db.queryCounts(ctx, store.QueryTopAuthors); err != nil {
		return nil, fmt.Errorf("top authors: %w", err)
	}
	if s.TopHubs, err = db.queryCounts(ctx, store.QueryTopHubs); err != nil {
		return nil, fmt.Errorf("top hubs: %w", err)
	}
	if s.MostViewed, err = db.queryRanked(ctx, store.QueryMostViewed); err != nil {
		return nil, fmt.Errorf("most viewed: %w", err)
	}
	if s.HighestRated, err = db.queryRanked(ctx, store.QueryHighestRated); err != nil {
		return nil, fmt.Errorf("highest rated: %w", err)
	}
	if s.LastRun, err = db.GetLastRun(ctx); err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &s, nil
}

func (db *DB) queryCounts(ctx context.Context, query string) ([]store.Count, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Count
	for rows.Next() {
		var c store.Count
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) queryRanked(ctx context.Context, query string) ([]store.Ranked, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Ranked
	for rows.Next() {
		var r store.Ranked
		if err := rows.Scan(&r.Title, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
