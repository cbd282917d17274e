package article

import (
	"strconv"
	"time"
)

// TimeLayout is the canonical date-time format for every timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

// Raw is one article block as scraped from a listing page. Nil fields were
// not present on the page.
type Raw struct {
	Title           *string   `json:"title"`
	URL             *string   `json:"url"`
	Author          *string   `json:"author"`
	PublicationDate *string   `json:"publication_date"`
	Views           *string   `json:"views"`
	Rating          *string   `json:"rating"`
	Hubs            *string   `json:"hubs"`
	PreviewText     *string   `json:"preview_text"`
	CommentsCount   *string   `json:"comments_count"`
	BookmarksCount  *string   `json:"bookmarks_count"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

// Canonical is a normalized article, safe for storage.
type Canonical struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	Author          string `json:"author"`
	PublicationDate string `json:"publication_date"`
	Views           int64  `json:"views"`
	Rating          int64  `json:"rating"`
	Hubs            string `json:"hubs"`
	PreviewText     string `json:"preview_text"`
	CommentsCount   int64  `json:"comments_count"`
	BookmarksCount  int64  `json:"bookmarks_count"`
	ScrapedAt       string `json:"scraped_at"`
}

// Stored is a persisted article row.
type Stored struct {
	ID int64 `json:"id"`
	Canonical
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Columns is the tabular column order shared by the CSV export and the
// articles table.
var Columns = []string{
	"title", "url", "author", "publication_date", "views", "rating",
	"hubs", "preview_text", "comments_count", "bookmarks_count", "scraped_at",
}

// Record returns the article as a row in Columns order.
func (c *Canonical) Record() []string {
	return []string{
		c.Title,
		c.URL,
		c.Author,
		c.PublicationDate,
		strconv.FormatInt(c.Views, 10),
		strconv.FormatInt(c.Rating, 10),
		c.Hubs,
		c.PreviewText,
		strconv.FormatInt(c.CommentsCount, 10),
		strconv.FormatInt(c.BookmarksCount, 10),
		c.ScrapedAt,
	}
}

// FormatTime formats t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
