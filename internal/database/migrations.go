package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "articles table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL CHECK (title <> ''),
    url TEXT UNIQUE NOT NULL CHECK (url <> ''),
    author TEXT,
    publication_date TEXT,
    views INTEGER DEFAULT 0,
    rating INTEGER DEFAULT 0,
    hubs TEXT,
    preview_text TEXT,
    comments_count INTEGER DEFAULT 0,
    bookmarks_count INTEGER DEFAULT 0,
    scraped_at TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_url ON articles(url);
CREATE INDEX IF NOT EXISTS idx_publication_date ON articles(publication_date);
CREATE INDEX IF NOT EXISTS idx_author ON articles(author);
CREATE INDEX IF NOT EXISTS idx_rating ON articles(rating);
CREATE INDEX IF NOT EXISTS idx_views ON articles(views);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "load run log",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS load_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    inserted INTEGER DEFAULT 0,
    updated INTEGER DEFAULT 0,
    errors INTEGER DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('completed', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
