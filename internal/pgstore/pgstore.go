// Package pgstore keeps the articles relation in Postgres.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL CHECK (title <> ''),
    url TEXT UNIQUE NOT NULL CHECK (url <> ''),
    author TEXT NOT NULL DEFAULT '',
    publication_date TEXT NOT NULL DEFAULT '',
    views BIGINT NOT NULL DEFAULT 0,
    rating BIGINT NOT NULL DEFAULT 0,
    hubs TEXT NOT NULL DEFAULT '',
    preview_text TEXT NOT NULL DEFAULT '',
    comments_count BIGINT NOT NULL DEFAULT 0,
    bookmarks_count BIGINT NOT NULL DEFAULT 0,
    scraped_at TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_publication_date ON articles(publication_date);
CREATE INDEX IF NOT EXISTS idx_author ON articles(author);
CREATE INDEX IF NOT EXISTS idx_rating ON articles(rating);
CREATE INDEX IF NOT EXISTS idx_views ON articles(views);

CREATE TABLE IF NOT EXISTS load_runs (
    id UUID PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    inserted INTEGER NOT NULL DEFAULT 0,
    updated INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK (status IN ('completed', 'failed'))
);
`

// Store is a store.Store over a single Postgres connection.
type Store struct {
	conn *pgx.Conn
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := conn.Exec(ctx, schema); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Close(ctx)
}

// Begin starts a transaction for a batch of upserts.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", store.ErrUnavailable, err)
	}
	return &articleTx{conn: s.conn, tx: tx}, nil
}

type articleTx struct {
	conn *pgx.Conn
	tx   pgx.Tx
}

// Upsert writes a inside its own savepoint: Postgres aborts the whole
// transaction on a failed statement, and one rejected row must not lose the
// rest of the batch.
func (t *articleTx) Upsert(ctx context.Context, a *article.Canonical, now time.Time) (int64, bool, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return 0, false, t.classify("opening savepoint", err)
	}

	var id int64
	var inserted bool
	err = sp.QueryRow(ctx,
		`INSERT INTO articles
		(title, url, author, publication_date, views, rating, hubs,
		 preview_text, comments_count, bookmarks_count, scraped_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			publication_date = EXCLUDED.publication_date,
			views = EXCLUDED.views,
			rating = EXCLUDED.rating,
			hubs = EXCLUDED.hubs,
			preview_text = EXCLUDED.preview_text,
			comments_count = EXCLUDED.comments_count,
			bookmarks_count = EXCLUDED.bookmarks_count,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)`,
		a.Title, a.URL, a.Author, a.PublicationDate, a.Views, a.Rating, a.Hubs,
		a.PreviewText, a.CommentsCount, a.BookmarksCount, a.ScrapedAt, now.UTC(),
	).Scan(&id, &inserted)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return 0, false, t.classify("rolling back savepoint", rbErr)
		}
		return 0, false, t.classify("upserting article", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, false, t.classify("releasing savepoint", err)
	}
	return id, inserted, nil
}

func (t *articleTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (t *articleTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func (t *articleTx) classify(op string, err error) error {
	if t.conn.IsClosed() || errors.Is(err, pgx.ErrTxClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RecordRun inserts or replaces a load run summary.
func (s *Store) RecordRun(ctx context.Context, run *store.Run) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO load_runs (id, started_at, finished_at, inserted, updated, errors, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			inserted = EXCLUDED.inserted,
			updated = EXCLUDED.updated,
			errors = EXCLUDED.errors,
			status = EXCLUDED.status`,
		run.ID.String(), run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Inserted, run.Updated, run.Errors, run.Status,
	)
	if err != nil {
		return fmt.Errorf("recording load run: %w", err)
	}
	return nil
}

// CountArticles returns the number of stored articles.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRow(ctx, store.QueryTotal).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LatestArticle returns the most recently inserted or updated article, or nil.
func (s *Store) LatestArticle(ctx context.Context) (*article.Stored, error) {
	var a article.Stored
	var created, updated time.Time
	err := s.conn.QueryRow(ctx,
		`SELECT id, title, url, author, publication_date, views, rating, hubs,
			preview_text, comments_count, bookmarks_count, scraped_at, created_at, updated_at
		FROM articles ORDER BY updated_at DESC, id DESC LIMIT 1`,
	).Scan(&a.ID, &a.Title, &a.URL, &a.Author, &a.PublicationDate, &a.Views, &a.Rating, &a.Hubs,
		&a.PreviewText, &a.CommentsCount, &a.BookmarksCount, &a.ScrapedAt, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = article.FormatTime(created)
	a.UpdatedAt = article.FormatTime(updated)
	return &a, nil
}

// Stats returns aggregate statistics over the stored articles.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	var st store.Stats

	if err := s.conn.QueryRow(ctx, store.QueryTotal).Scan(&st.TotalArticles); err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}
	if err := s.conn.QueryRow(ctx, store.QueryDateRange).Scan(&st.EarliestPublished, &st.LatestPublished); err != nil {
		return nil, fmt.Errorf("reading date range: %w", err)
	}

	var err error
	if st.TopAuthors, err = s.queryCounts(ctx, store.QueryTopAuthors); err != nil {
		return nil, fmt.Errorf("top authors: %w", err)
	}
	if st.TopHubs, err = s.queryCounts(ctx, store.QueryTopHubs); err != nil {
		return nil, fmt.Errorf("top hubs: %w", err)
	}
	if st.MostViewed, err = s.queryRanked(ctx, store.QueryMostViewed); err != nil {
		return nil, fmt.Errorf("most viewed: %w", err)
	}
	if st.HighestRated, err = s.queryRanked(ctx, store.QueryHighestRated); err != nil {
		return nil, fmt.Errorf("highest rated: %w", err)
	}
	if st.LastRun, err = s.lastRun(ctx); err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &st, nil
}

func (s *Store) queryCounts(ctx context.Context, query string) ([]store.Count, error) {
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Count, error) {
		var c store.Count
		err := row.Scan(&c.Label, &c.Count)
		return c, err
	})
}

func (s *Store) queryRanked(ctx context.Context, query string) ([]store.Ranked, error) {
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Ranked, error) {
		var r store.Ranked
		err := row.Scan(&r.Title, &r.Value)
		return r, err
	})
}

func (s *Store) lastRun(ctx context.Context) (*store.Run, error) {
	var r store.Run
	var id string
	err := s.conn.QueryRow(ctx,
		`SELECT id::text, started_at, finished_at, inserted, updated, errors, status
		FROM load_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&id, &r.StartedAt, &r.FinishedAt, &r.Inserted, &r.Updated, &r.Errors, &r.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing run id %q: %w", id, err)
	}
	return &r, nil
}
