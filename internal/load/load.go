// Package load upserts canonical articles into the store in batches.
package load

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/artifact"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

// DefaultBatchSize is the number of upserts per transaction.
const DefaultBatchSize = 50

// ErrNoURL rejects a record that has no key to upsert by.
var ErrNoURL = errors.New("article has no url")

// Status is the outcome of one record.
type Status string

const (
	StatusInserted Status = "inserted"
	StatusUpdated  Status = "updated"
	StatusError    Status = "error"
)

// Outcome records what happened to one article.
type Outcome struct {
	URL    string
	ID     int64
	Status Status
	Err    error
}

// Result holds the results of a load. Counts cover committed batches only.
type Result struct {
	Inserted       int
	Updated        int
	Errors         int
	TotalProcessed int
	Outcomes       []Outcome
	RunID          uuid.UUID
}

func (r *Result) add(c counts) {
	r.Inserted += c.inserted
	r.Updated += c.updated
	r.Errors += c.errors
	r.TotalProcessed = r.Inserted + r.Updated
}

type counts struct {
	inserted, updated, errors int
}

func (c *counts) record(s Status) {
	switch s {
	case StatusInserted:
		c.inserted++
	case StatusUpdated:
		c.updated++
	default:
		c.errors++
	}
}

// Loader writes the cleaned artifact into a store.
type Loader struct {
	store     store.Store
	batchSize int
	cleanPath string
	now       func() time.Time
}

// NewLoader creates a loader. A batchSize below 1 falls back to
// DefaultBatchSize.
func NewLoader(st store.Store, batchSize int, cleanPath string) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Loader{store: st, batchSize: batchSize, cleanPath: cleanPath, now: time.Now}
}

// Run loads the cleaned artifact and records the run. It fails with
// artifact.ErrMissing when the normalizer has not produced one.
func (l *Loader) Run(ctx context.Context) (*Result, error) {
	var articles []article.Canonical
	if err := artifact.ReadJSON(l.cleanPath, &articles); err != nil {
		return nil, err
	}
	log.Printf("Loaded %d articles from %s", len(articles), l.cleanPath)

	run := &store.Run{ID: uuid.New(), StartedAt: l.now().UTC(), Status: store.RunCompleted}
	result, loadErr := l.Load(ctx, articles)
	result.RunID = run.ID

	run.FinishedAt = l.now().UTC()
	run.Inserted = result.Inserted
	run.Updated = result.Updated
	run.Errors = result.Errors
	if loadErr != nil {
		run.Status = store.RunFailed
	}

	// The run is recorded even when ctx was what ended the load.
	if err := l.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		if loadErr != nil {
			log.Printf("Could not record failed run %s: %v", run.ID, err)
			return result, loadErr
		}
		return result, fmt.Errorf("recording run: %w", err)
	}
	if loadErr != nil {
		return result, loadErr
	}

	log.Printf("Load complete: %d inserted, %d updated, %d errors",
		result.Inserted, result.Updated, result.Errors)
	return result, nil
}

// Load upserts articles, committing every batchSize records. A rejected
// record is counted and skipped. Losing the storage itself rolls back the
// open batch and returns the error along with the committed counts.
func (l *Loader) Load(ctx context.Context, articles []article.Canonical) (*Result, error) {
	r := &Result{}
	if len(articles) == 0 {
		return r, nil
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return r, fmt.Errorf("beginning batch: %w", err)
	}

	var pending counts
	for i := range articles {
		o, err := l.upsert(ctx, tx, &articles[i])
		if err != nil {
			rollback(ctx, tx)
			return r, err
		}
		r.Outcomes = append(r.Outcomes, o)
		pending.record(o.Status)

		done := i + 1
		if done%l.batchSize != 0 || done == len(articles) {
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			rollback(ctx, tx)
			return r, fmt.Errorf("committing batch: %w", err)
		}
		r.add(pending)
		pending = counts{}
		log.Printf("Processed %d/%d articles", done, len(articles))

		if tx, err = l.store.Begin(ctx); err != nil {
			return r, fmt.Errorf("beginning batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		rollback(ctx, tx)
		return r, fmt.Errorf("committing batch: %w", err)
	}
	r.add(pending)
	log.Printf("Processed %d/%d articles", len(articles), len(articles))
	return r, nil
}

// upsert returns an error only when the whole load must stop.
func (l *Loader) upsert(ctx context.Context, tx store.Tx, a *article.Canonical) (Outcome, error) {
	o := Outcome{URL: a.URL}
	if a.URL == "" {
		o.Status, o.Err = StatusError, ErrNoURL
		log.Printf("Skipping article %q: %v", a.Title, ErrNoURL)
		return o, nil
	}

	id, inserted, err := tx.Upsert(ctx, a, l.now().UTC())
	switch {
	case errors.Is(err, store.ErrUnavailable):
		return o, fmt.Errorf("upserting %s: %w", a.URL, err)
	case err != nil:
		o.Status, o.Err = StatusError, err
		log.Printf("Error loading %s: %v", a.URL, err)
	case inserted:
		o.ID, o.Status = id, StatusInserted
	default:
		o.ID, o.Status = id, StatusUpdated
	}
	return o, nil
}

func rollback(ctx context.Context, tx store.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Printf("Rollback failed: %v", err)
	}
}
