// Package store defines the persistence contract the loader and the
// statistics report depend on. internal/database (SQLite) and
// internal/pgstore (Postgres) implement it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/habrpipe/internal/article"
)

// ErrUnavailable marks failures of the storage connection itself, as opposed
// to a single statement being rejected. The loader aborts on it.
var ErrUnavailable = errors.New("storage unavailable")

// Store is a handle on the articles relation.
type Store interface {
	// Begin starts a transaction for a batch of upserts.
	Begin(ctx context.Context) (Tx, error)
	// RecordRun persists the summary of one load run.
	RecordRun(ctx context.Context, run *Run) error
	// CountArticles returns the number of stored rows.
	CountArticles(ctx context.Context) (int, error)
	// LatestArticle returns the most recently written row, or nil when the
	// relation is empty.
	LatestArticle(ctx context.Context) (*article.Stored, error)
	// Stats returns the aggregate figures shown in the report.
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Tx is one open transaction.
type Tx interface {
	// Upsert inserts a by url or updates the existing row. inserted is
	// false when an existing row was updated.
	Upsert(ctx context.Context, a *article.Canonical, now time.Time) (id int64, inserted bool, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Run status values.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run summarizes one loader invocation.
type Run struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Errors     int       `json:"errors"`
	Status     string    `json:"status"`
}

// Count is a label with its number of articles.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Ranked is an article title with the value it was ranked by.
type Ranked struct {
	Title string `json:"title"`
	Value int64  `json:"value"`
}

// Stats contains aggregate statistics over the stored articles.
type Stats struct {
	TotalArticles     int      `json:"total_articles"`
	EarliestPublished string   `json:"earliest_published,omitempty"`
	LatestPublished   string   `json:"latest_published,omitempty"`
	TopAuthors        []Count  `json:"top_authors"`
	TopHubs           []Count  `json:"top_hubs"`
	MostViewed        []Ranked `json:"most_viewed"`
	HighestRated      []Ranked `json:"highest_rated"`
	LastRun           *Run     `json:"last_run,omitempty"`
}
