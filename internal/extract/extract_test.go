package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/habrpipe/internal/article"
	"github.com/TobiSchelling/habrpipe/internal/artifact"
)

var scrapedAt = time.Date(2026, 2, 6, 9, 15, 0, 0, time.UTC)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "listing.html"))
	require.NoError(t, err)
	return string(data)
}

func parseFixture(t *testing.T, html, pageURL string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	doc.Url, err = url.Parse(pageURL)
	require.NoError(t, err)
	return doc
}

// pageHTML renders a listing page with one titled block per title.
func pageHTML(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, title := range titles {
		fmt.Fprintf(&b, `<article class="tm-articles-list__item"><h2><a href="/ru/articles/%s/">%s</a></h2></article>`, title, title)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// TestParseListing verifies field extraction from a realistic listing page
func TestParseListing(t *testing.T) {
	doc := parseFixture(t, loadFixture(t), "https://habr.com/ru/articles/")

	listing := ParseListing(doc, scrapedAt)

	assert.Equal(t, 3, listing.Blocks)
	assert.Equal(t, 1, listing.Untitled, "megapost block has no title")
	require.Len(t, listing.Articles, 2)

	full := listing.Articles[0]
	require.NotNil(t, full.Title)
	assert.Equal(t, "Пишем   ETL на Go", *full.Title, "whitespace is collapsed later")
	require.NotNil(t, full.URL)
	assert.Equal(t, "https://habr.com/ru/articles/900001/", *full.URL)
	require.NotNil(t, full.Author)
	assert.Equal(t, "@gopher", *full.Author)
	require.NotNil(t, full.PublicationDate)
	assert.Equal(t, "2026-02-06T10:30:00.000Z", *full.PublicationDate)
	require.NotNil(t, full.Views)
	assert.Equal(t, "4.1K", *full.Views)
	require.NotNil(t, full.Rating)
	assert.Equal(t, "+15", *full.Rating)
	require.NotNil(t, full.Hubs)
	assert.Equal(t, "Go, SQL", *full.Hubs)
	require.NotNil(t, full.PreviewText)
	assert.True(t, strings.HasPrefix(*full.PreviewText, "Короткое"))
	require.NotNil(t, full.CommentsCount)
	assert.Equal(t, "8", *full.CommentsCount)
	require.NotNil(t, full.BookmarksCount)
	assert.Equal(t, "27", *full.BookmarksCount)
	assert.Equal(t, scrapedAt, full.ScrapedAt)

	sparse := listing.Articles[1]
	require.NotNil(t, sparse.URL)
	assert.Equal(t, "https://habr.com/ru/news/900002/", *sparse.URL)
	assert.Nil(t, sparse.Author)
	assert.Nil(t, sparse.PublicationDate)
	assert.Nil(t, sparse.Views)
	assert.Nil(t, sparse.Rating)
	assert.Nil(t, sparse.Hubs)
	assert.Nil(t, sparse.PreviewText)
	assert.Nil(t, sparse.CommentsCount)
	assert.Nil(t, sparse.BookmarksCount)
}

// TestParseListingLongPreview verifies the preview is cut with a marker
func TestParseListingLongPreview(t *testing.T) {
	body := strings.Repeat("ж", 650)
	html := `<article class="tm-articles-list__item"><h2><a href="/a/">T</a></h2>` +
		`<div class="article-formatted-body">` + body + `</div></article>`
	doc := parseFixture(t, html, "https://habr.com/ru/articles/")

	listing := ParseListing(doc, scrapedAt)

	require.Len(t, listing.Articles, 1)
	p := *listing.Articles[0].PreviewText
	assert.Len(t, []rune(p), previewLimit+3)
	assert.True(t, strings.HasSuffix(p, "..."))
}

func TestParseListingNoBlocks(t *testing.T) {
	doc := parseFixture(t, "<html><body><p>maintenance</p></body></html>", "https://habr.com/")

	listing := ParseListing(doc, scrapedAt)

	assert.Zero(t, listing.Blocks)
	assert.Empty(t, listing.Articles)
}

func TestPageURL(t *testing.T) {
	f, err := NewHTTPFetcher("https://habr.com/ru/articles/", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "https://habr.com/ru/articles/", f.PageURL(1))
	assert.Equal(t, "https://habr.com/ru/articles/page2/", f.PageURL(2))
	assert.Equal(t, "https://habr.com/ru/articles/page6/", f.PageURL(6))

	_, err = NewHTTPFetcher("/relative/", "", 0)
	assert.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ru/articles/":
			fmt.Fprint(w, pageHTML("first"))
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/ru/articles/", "test-agent", time.Second)
	require.NoError(t, err)

	doc, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUA)
	listing := ParseListing(doc, scrapedAt)
	require.Len(t, listing.Articles, 1)
	assert.Equal(t, srv.URL+"/ru/articles/first/", *listing.Articles[0].URL)

	_, err = f.Fetch(context.Background(), 2)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusGone, statusErr.Code)
}

// TestHTTPFetcherRedirectLoop verifies a page stuck in redirects fails
// instead of parsing as an empty listing
func TestHTTPFetcherRedirectLoop(t *testing.T) {
	hops := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("/ru/articles/?hop=%d", hops), http.StatusFound)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/ru/articles/", "", time.Second)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), 1)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusFound, statusErr.Code)

	rawPath := filepath.Join(t.TempDir(), "raw_articles.json")
	result, err := NewExtractor(f, 1, 0, rawPath).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailedPages)
	assert.Zero(t, result.Blocks)
}

// TestExtractorRun verifies page order, failure isolation and pacing
func TestExtractorRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ru/articles/":
			fmt.Fprint(w, pageHTML("a1", "a2"))
		case "/ru/articles/page2/":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/ru/articles/page3/":
			fmt.Fprint(w, pageHTML("c1"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/ru/articles/", "", time.Second)
	require.NoError(t, err)

	rawPath := filepath.Join(t.TempDir(), "raw_articles.json")
	e := NewExtractor(f, 3, 2*time.Second, rawPath)
	var slept []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	e.now = func() time.Time { return scrapedAt }

	result, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 1, result.FailedPages)
	assert.Equal(t, 3, result.Articles)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, slept, "no delay after the last page")

	var raw []article.Raw
	require.NoError(t, artifact.ReadJSON(rawPath, &raw))
	require.Len(t, raw, 3)
	var titles []string
	for _, a := range raw {
		titles = append(titles, *a.Title)
	}
	assert.Equal(t, []string{"a1", "a2", "c1"}, titles)
	assert.True(t, raw[0].ScrapedAt.Equal(scrapedAt))
}

// TestExtractorAllPagesFail verifies an empty artifact is still written
func TestExtractorAllPagesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/", "", time.Second)
	require.NoError(t, err)
	rawPath := filepath.Join(t.TempDir(), "raw_articles.json")

	result, err := NewExtractor(f, 2, 0, rawPath).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FailedPages)
	assert.Zero(t, result.Articles)

	var raw []article.Raw
	require.NoError(t, artifact.ReadJSON(rawPath, &raw))
	assert.Empty(t, raw)
}

type stubFetcher struct{ calls int }

func (s *stubFetcher) Fetch(ctx context.Context, page int) (*goquery.Document, error) {
	s.calls++
	return goquery.NewDocumentFromReader(strings.NewReader(pageHTML(fmt.Sprintf("p%d", page))))
}

func TestExtractorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &stubFetcher{}
	rawPath := filepath.Join(t.TempDir(), "raw_articles.json")

	e := NewExtractor(fetcher, 5, time.Hour, rawPath)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	_, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fetcher.calls)
	assert.False(t, artifact.Exists(rawPath))
}
