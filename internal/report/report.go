// Package report renders store statistics as markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/habrpipe/internal/store"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

var escaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "<", `\<`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
)

// Markdown builds the statistics report. now anchors relative times.
func Markdown(st *store.Stats, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Habr articles\n\n")

	if st.TotalArticles == 0 {
		b.WriteString("No articles stored yet.\n")
		writeLastRun(&b, st.LastRun, now)
		return b.String()
	}

	fmt.Fprintf(&b, "**Total articles:** %s\n\n", humanize.Comma(int64(st.TotalArticles)))
	if st.EarliestPublished != "" {
		fmt.Fprintf(&b, "**Published:** %s to %s\n\n", st.EarliestPublished, st.LatestPublished)
	}

	writeCounts(&b, "Top authors", "Author", st.TopAuthors)
	writeCounts(&b, "Top hubs", "Hubs", st.TopHubs)
	writeRanked(&b, "Most viewed", "Views", st.MostViewed)
	writeRanked(&b, "Highest rated", "Rating", st.HighestRated)
	writeLastRun(&b, st.LastRun, now)
	return b.String()
}

func writeCounts(b *strings.Builder, heading, label string, rows []store.Count) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n| %s | Articles |\n| --- | ---: |\n", heading, label)
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", escape(r.Label), humanize.Comma(int64(r.Count)))
	}
	b.WriteString("\n")
}

func writeRanked(b *strings.Builder, heading, label string, rows []store.Ranked) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n| # | Title | %s |\n| ---: | --- | ---: |\n", heading, label)
	for i, r := range rows {
		fmt.Fprintf(b, "| %d | %s | %s |\n", i+1, escape(r.Title), humanize.Comma(r.Value))
	}
	b.WriteString("\n")
}

func writeLastRun(b *strings.Builder, run *store.Run, now time.Time) {
	if run == nil {
		return
	}
	b.WriteString("## Last load\n\n")
	fmt.Fprintf(b, "- Run: `%s`\n", run.ID)
	fmt.Fprintf(b, "- Status: %s\n", run.Status)
	fmt.Fprintf(b, "- Finished: %s (%s)\n", run.FinishedAt.UTC().Format(time.DateTime),
		humanize.RelTime(run.FinishedAt, now, "ago", "from now"))
	fmt.Fprintf(b, "- Inserted: %s, updated: %s, errors: %s\n",
		humanize.Comma(int64(run.Inserted)), humanize.Comma(int64(run.Updated)), humanize.Comma(int64(run.Errors)))
}

func escape(s string) string {
	if s == "" {
		return "(none)"
	}
	return escaper.Replace(s)
}

// HTML converts report markdown to an HTML fragment.
func HTML(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint: gosec
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Habr articles</title>
</head>
<body>
{{.}}
</body>
</html>
`))

// WriteHTML writes the report as a standalone HTML document to path.
func WriteHTML(path string, st *store.Stats, now time.Time) error {
	body, err := HTML(Markdown(st, now))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, body); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
