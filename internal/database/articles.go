package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

const selectArticle = `SELECT id, title, url, author, publication_date, views, rating, hubs,
	preview_text, comments_count, bookmarks_count, scraped_at, created_at, updated_at
	FROM articles`

type articleTx struct {
	tx *sql.Tx
}

// Upsert updates the row with a's url, or inserts a new one.
func (t *articleTx) Upsert(ctx context.Context, a *article.Canonical, now time.Time) (int64, bool, error) {
	ts := article.FormatTime(now)

	var id int64
	err := t.tx.QueryRowContext(ctx, "SELECT id FROM articles WHERE url = ?", a.URL).Scan(&id)
	switch {
	case err == nil:
		_, err = t.tx.ExecContext(ctx,
			`UPDATE articles SET
				title = ?, author = ?, publication_date = ?, views = ?, rating = ?,
				hubs = ?, preview_text = ?, comments_count = ?, bookmarks_count = ?,
				scraped_at = ?, updated_at = ?
			WHERE id = ?`,
			a.Title, a.Author, a.PublicationDate, a.Views, a.Rating,
			a.Hubs, a.PreviewText, a.CommentsCount, a.BookmarksCount,
			a.ScrapedAt, ts, id,
		)
		if err != nil {
			return 0, false, classify("updating article", err)
		}
		return id, false, nil

	case errors.Is(err, sql.ErrNoRows):
		result, err := t.tx.ExecContext(ctx,
			`INSERT INTO articles
			(title, url, author, publication_date, views, rating, hubs,
			 preview_text, comments_count, bookmarks_count, scraped_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Title, a.URL, a.Author, a.PublicationDate, a.Views, a.Rating, a.Hubs,
			a.PreviewText, a.CommentsCount, a.BookmarksCount, a.ScrapedAt, ts, ts,
		)
		if err != nil {
			return 0, false, classify("inserting article", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, classify("reading inserted id", err)
		}
		return id, true, nil

	default:
		return 0, false, classify("looking up article", err)
	}
}

func (t *articleTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (t *articleTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// classify marks connection-level failures with store.ErrUnavailable. Any
// other error is a rejected statement and only affects the current row.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// LatestArticle returns the most recently inserted or updated article, or nil.
func (db *DB) LatestArticle(ctx context.Context) (*article.Stored, error) {
	row := db.conn.QueryRowContext(ctx, selectArticle+" ORDER BY updated_at DESC, id DESC LIMIT 1")
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetArticleByURL returns the stored article with the given url, or nil.
// It is not part of store.Store; tests use it to inspect single rows.
func (db *DB) GetArticleByURL(ctx context.Context, url string) (*article.Stored, error) {
	row := db.conn.QueryRowContext(ctx, selectArticle+" WHERE url = ?", url)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountArticles returns the number of stored articles.
func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, store.QueryTotal).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*article.Stored, error) {
	var a article.Stored
	// Rows written by the legacy loader may hold NULLs in optional columns.
	var author, pubDate, hubs, preview, scrapedAt, createdAt, updatedAt sql.NullString
	if err := row.Scan(&a.ID, &a.Title, &a.URL, &author, &pubDate, &a.Views, &a.Rating,
		&hubs, &preview, &a.CommentsCount, &a.BookmarksCount, &scrapedAt,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Author = author.String
	a.PublicationDate = pubDate.String
	a.Hubs = hubs.String
	a.PreviewText = preview.String
	a.ScrapedAt = scrapedAt.String
	a.CreatedAt = createdAt.String
	a.UpdatedAt = updatedAt.String
	return &a, nil
}
