package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/habrpipe/internal/article"
)

// Selectors for the article listing markup.
const (
	blockSelector     = "article.tm-articles-list__item"
	titleSelector     = "h2 a"
	authorSelector    = "a.tm-user-info__username"
	dateSelector      = "time[datetime]"
	viewsSelector     = "span.tm-icon-counter__value"
	ratingSelector    = "span.tm-votes-meter__value"
	hubSelector       = "a.tm-publication-hub__link"
	previewSelector   = "div.article-formatted-body"
	commentsSelector  = "span.tm-article-comments-counter__value"
	bookmarksSelector = "span.bookmarks-button__counter"
)

// previewLimit caps preview text at extraction time; longer text gets "...".
const previewLimit = 500

// Listing is the outcome of parsing one listing page.
type Listing struct {
	Blocks   int
	Untitled int
	Articles []article.Raw
}

// ParseListing extracts every article block of doc. Blocks without a title
// are skipped; any other missing element leaves its field nil.
func ParseListing(doc *goquery.Document, scrapedAt time.Time) *Listing {
	l := &Listing{}
	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		l.Blocks++
		a, ok := parseBlock(block, doc.Url, scrapedAt)
		if !ok {
			l.Untitled++
			return
		}
		l.Articles = append(l.Articles, a)
	})
	return l
}

func parseBlock(block *goquery.Selection, pageURL *url.URL, scrapedAt time.Time) (article.Raw, bool) {
	link := block.Find(titleSelector).First()
	title := text(link)
	if title == nil || *title == "" {
		return article.Raw{}, false
	}

	a := article.Raw{
		Title:           title,
		URL:             href(link, pageURL),
		Author:          text(block.Find(authorSelector).First()),
		PublicationDate: attr(block.Find(dateSelector).First(), "datetime"),
		Views:           text(block.Find(viewsSelector).First()),
		Rating:          text(block.Find(ratingSelector).First()),
		Hubs:            hubs(block.Find(hubSelector)),
		PreviewText:     preview(block.Find(previewSelector).First()),
		CommentsCount:   text(block.Find(commentsSelector).First()),
		BookmarksCount:  text(block.Find(bookmarksSelector).First()),
		ScrapedAt:       scrapedAt,
	}
	return a, true
}

func text(sel *goquery.Selection) *string {
	if sel.Length() == 0 {
		return nil
	}
	s := strings.TrimSpace(sel.Text())
	return &s
}

func attr(sel *goquery.Selection, name string) *string {
	v, ok := sel.Attr(name)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func href(link *goquery.Selection, pageURL *url.URL) *string {
	v := attr(link, "href")
	if v == nil || *v == "" || pageURL == nil {
		return v
	}
	ref, err := url.Parse(*v)
	if err != nil {
		return v
	}
	abs := pageURL.ResolveReference(ref).String()
	return &abs
}

func hubs(sel *goquery.Selection) *string {
	if sel.Length() == 0 {
		return nil
	}
	var names []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			names = append(names, name)
		}
	})
	joined := strings.Join(names, ", ")
	return &joined
}

func preview(sel *goquery.Selection) *string {
	p := text(sel)
	if p == nil {
		return nil
	}
	if r := []rune(*p); len(r) > previewLimit {
		cut := string(r[:previewLimit]) + "..."
		return &cut
	}
	return p
}
