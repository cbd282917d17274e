// Package extract scrapes article listing pages into the raw artifact.
package extract

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/artifact"
)

// Result holds the results of an extraction run.
type Result struct {
	Pages       int
	FailedPages int
	Blocks      int
	Untitled    int
	Articles    int
	Path        string
}

// Extractor walks the listing pages and writes what it finds.
type Extractor struct {
	fetcher Fetcher
	pages   int
	delay   time.Duration
	rawPath string

	// sleep and now are replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewExtractor creates an extractor over pages 1..pages of fetcher, pausing
// delay between fetches and writing the raw artifact to rawPath.
func NewExtractor(fetcher Fetcher, pages int, delay time.Duration, rawPath string) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		pages:   pages,
		delay:   delay,
		rawPath: rawPath,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Run fetches every page in order. A failing page is logged and contributes
// no articles; only cancellation or a failed artifact write stop the run.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	r := &Result{Path: e.rawPath}
	articles := []article.Raw{}

	for page := 1; page <= e.pages; page++ {
		if page > 1 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.Pages++
		log.Printf("Fetching page %d/%d", page, e.pages)
		doc, err := e.fetcher.Fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.FailedPages++
			log.Printf("Page %d failed: %v", page, err)
			continue
		}

		listing := ParseListing(doc, e.now().UTC())
		r.Blocks += listing.Blocks
		r.Untitled += listing.Untitled
		articles = append(articles, listing.Articles...)
		log.Printf("Page %d: %d articles", page, len(listing.Articles))
	}

	if err := artifact.WriteJSON(e.rawPath, articles); err != nil {
		return nil, fmt.Errorf("writing raw artifact: %w", err)
	}
	r.Articles = len(articles)

	log.Printf("Extraction complete: %d articles from %d pages (%d failed)",
		r.Articles, r.Pages, r.FailedPages)
	return r, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
