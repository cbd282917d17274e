// Package normalize turns raw scraped articles into canonical records.
package normalize

import (
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/artifact"
)

// Result holds the diagnostics of a normalization run.
type Result struct {
	RowsIn     int
	MissingKey int
	Duplicates int
	RowsOut    int
	// Coercions counts, per column, present values that could not be read
	// and were replaced by a zero value.
	Coercions map[string]int
	JSONPath  string
	CSVPath   string
}

// Normalizer reads the raw artifact and writes the canonical exports.
type Normalizer struct {
	rawPath  string
	jsonPath string
	csvPath  string
}

// NewNormalizer creates a normalizer over the given artifact paths.
func NewNormalizer(rawPath, jsonPath, csvPath string) *Normalizer {
	return &Normalizer{rawPath: rawPath, jsonPath: jsonPath, csvPath: csvPath}
}

// Run normalizes the raw artifact. It fails with artifact.ErrMissing when
// the extractor has not produced one.
func (n *Normalizer) Run() (*Result, error) {
	var raw []article.Raw
	if err := artifact.ReadJSON(n.rawPath, &raw); err != nil {
		return nil, err
	}
	log.Printf("Loaded %d raw articles from %s", len(raw), n.rawPath)

	articles, result := Normalize(raw)

	if articles == nil {
		articles = []article.Canonical{}
	}
	if err := artifact.WriteJSON(n.jsonPath, articles); err != nil {
		return nil, fmt.Errorf("exporting json: %w", err)
	}
	records := make([][]string, len(articles))
	for i := range articles {
		records[i] = articles[i].Record()
	}
	if err := artifact.WriteCSV(n.csvPath, article.Columns, records); err != nil {
		return nil, fmt.Errorf("exporting csv: %w", err)
	}
	result.JSONPath = n.jsonPath
	result.CSVPath = n.csvPath

	log.Printf("Normalization complete: %d in, %d out (%d missing key, %d duplicates)",
		result.RowsIn, result.RowsOut, result.MissingKey, result.Duplicates)
	for col, count := range result.Coercions {
		log.Printf("Column %s: %d values coerced to zero", col, count)
	}
	return result, nil
}

// Normalize converts raw articles to canonical ones. Rows without a url or
// title are dropped, then the first row of each url wins.
func Normalize(raw []article.Raw) ([]article.Canonical, *Result) {
	r := &Result{RowsIn: len(raw), Coercions: make(map[string]int)}
	seen := make(map[string]struct{}, len(raw))
	var out []article.Canonical

	for i := range raw {
		c := r.convert(&raw[i])
		if c.URL == "" || c.Title == "" {
			r.MissingKey++
			log.Printf("Dropping row %d: missing url or title", i+1)
			continue
		}
		if _, dup := seen[c.URL]; dup {
			r.Duplicates++
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}

	r.RowsOut = len(out)
	return out, r
}

func (r *Result) convert(raw *article.Raw) article.Canonical {
	pubDate := Date(raw.PublicationDate)
	if pubDate == "" && raw.PublicationDate != nil && Text(*raw.PublicationDate) != "" {
		r.Coercions["publication_date"]++
	}

	return article.Canonical{
		Title:           OptionalText(raw.Title),
		URL:             OptionalText(raw.URL),
		Author:          Author(raw.Author),
		PublicationDate: pubDate,
		Views:           r.count("views", raw.Views, false),
		Rating:          r.count("rating", raw.Rating, true),
		Hubs:            trimmed(raw.Hubs),
		PreviewText:     Truncate(OptionalText(raw.PreviewText), PreviewLimit),
		CommentsCount:   r.count("comments_count", raw.CommentsCount, false),
		BookmarksCount:  r.count("bookmarks_count", raw.BookmarksCount, false),
		ScrapedAt:       article.FormatTime(raw.ScrapedAt),
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func (r *Result) count(column string, s *string, signed bool) int64 {
	if s == nil {
		return 0
	}
	n, ok := parseCountText(*s)
	if !ok || (!signed && n < 0) {
		r.Coercions[column]++
		return 0
	}
	return n
}
