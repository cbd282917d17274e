package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/habrpipe/internal/store"
)

var now = time.Date(2026, 2, 6, 15, 0, 0, 0, time.UTC)

func sampleStats() *store.Stats {
	return &store.Stats{
		TotalArticles:     12345,
		EarliestPublished: "2026-01-30 08:00:00",
		LatestPublished:   "2026-02-06 10:30:00",
		TopAuthors:        []store.Count{{Label: "alice", Count: 7}, {Label: "bob", Count: 3}},
		TopHubs:           []store.Count{{Label: "Go, SQL", Count: 4}},
		MostViewed:        []store.Ranked{{Title: "Pipes | and <tags>", Value: 1200000}},
		HighestRated:      []store.Ranked{{Title: "Best", Value: 321}},
		LastRun: &store.Run{
			ID:         uuid.MustParse("6f1c2a9e-3b8d-4e62-9a57-0c4d1e2f3a4b"),
			FinishedAt: now.Add(-2 * time.Hour),
			Inserted:   1500,
			Updated:    10,
			Errors:     1,
			Status:     store.RunCompleted,
		},
	}
}

// TestMarkdown verifies the report sections and number formatting
func TestMarkdown(t *testing.T) {
	out := Markdown(sampleStats(), now)

	assert.Contains(t, out, "**Total articles:** 12,345")
	assert.Contains(t, out, "**Published:** 2026-01-30 08:00:00 to 2026-02-06 10:30:00")
	assert.Contains(t, out, "## Top authors")
	assert.Contains(t, out, "| alice | 7 |")
	assert.Contains(t, out, "| Go, SQL | 4 |")
	assert.Contains(t, out, `| 1 | Pipes \| and \<tags> | 1,200,000 |`)
	assert.Contains(t, out, "| 1 | Best | 321 |")
	assert.Contains(t, out, "- Status: completed")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "- Inserted: 1,500, updated: 10, errors: 1")
}

func TestMarkdownEmpty(t *testing.T) {
	out := Markdown(&store.Stats{}, now)

	assert.Contains(t, out, "No articles stored yet.")
	assert.NotContains(t, out, "## Top authors")
	assert.NotContains(t, out, "## Last load")
}

func TestMarkdownEmptyAuthor(t *testing.T) {
	st := &store.Stats{TotalArticles: 1, TopAuthors: []store.Count{{Label: "", Count: 1}}}

	assert.Contains(t, Markdown(st, now), "| (none) | 1 |")
}

// TestHTML verifies tables render and titles stay escaped
func TestHTML(t *testing.T) {
	html, err := HTML(Markdown(sampleStats(), now))
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "<h1>Habr articles</h1>")
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<td>alice</td>")
	assert.Contains(t, s, "&lt;tags&gt;")
	assert.NotContains(t, s, "<tags>")
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")

	require.NoError(t, WriteHTML(path, sampleStats(), now))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, "<!DOCTYPE html>"))
	assert.Contains(t, s, "<h2>Most viewed</h2>")
}
