package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultUserAgent is sent when the configuration does not name one.
const DefaultUserAgent = "habrpipe/1.0 (listing extractor)"

// Fetcher loads one listing page.
type Fetcher interface {
	Fetch(ctx context.Context, page int) (*goquery.Document, error)
}

// HTTPFetcher fetches listing pages over plain HTTP.
type HTTPFetcher struct {
	base      *url.URL
	userAgent string
	client    *http.Client
}

// NewHTTPFetcher creates a fetcher for the listing rooted at baseURL.
func NewHTTPFetcher(baseURL, userAgent string, timeout time.Duration) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		base:      base,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

// PageURL returns the address of listing page n. Page 1 is the base URL,
// later pages are "<base>pageN/".
func (f *HTTPFetcher) PageURL(n int) string {
	if n <= 1 {
		return f.base.String()
	}
	return f.base.JoinPath(fmt.Sprintf("page%d", n)).String() + "/"
}

// Fetch downloads and parses listing page n.
func (f *HTTPFetcher) Fetch(ctx context.Context, page int) (*goquery.Document, error) {
	pageURL := f.PageURL(page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	// Anything but 2xx, including the last hop of a redirect chain cut off
	// by CheckRedirect, is a failed page rather than an empty listing.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	// Relative links resolve against the final address after redirects.
	doc.Url = resp.Request.URL
	return doc, nil
}

// StatusError reports a non-2xx status for a listing page.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
