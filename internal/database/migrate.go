package database

import (
	"database/sql"
	"fmt"
	"log"
)

// legacyColumns are the articles columns the earlier loader script created.
// A database holding them without a user_version already matches
// migration 1 apart from the CHECK constraints.
var legacyColumns = []string{
	"id", "title", "url", "author", "publication_date", "views", "rating", "hubs",
	"preview_text", "comments_count", "bookmarks_count", "scraped_at", "created_at", "updated_at",
}

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// articleColumns returns the column names of the articles table, or nil
// when it does not exist.
func articleColumns(conn *sql.DB) (map[string]bool, error) {
	rows, err := conn.Query("SELECT name FROM pragma_table_info('articles')")
	if err != nil {
		return nil, fmt.Errorf("reading articles columns: %w", err)
	}
	defer rows.Close()

	var cols map[string]bool
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if cols == nil {
			cols = make(map[string]bool)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// isLegacyDB reports whether an unversioned database holds the loader
// script's articles table. An articles table of any other shape is an error:
// migrating over it would mix unrelated data into the relation.
func isLegacyDB(conn *sql.DB) (bool, error) {
	cols, err := articleColumns(conn)
	if err != nil {
		return false, err
	}
	if cols == nil {
		return false, nil
	}
	for _, c := range legacyColumns {
		if !cols[c] {
			return false, fmt.Errorf("existing articles table lacks column %q; not a habrpipe database", c)
		}
	}
	return true, nil
}

// migrate brings the database schema up to the latest version, tracked in
// PRAGMA user_version.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		legacy, err := isLegacyDB(conn)
		if err != nil {
			return err
		}
		if legacy {
			var rows int
			if err := conn.QueryRow("SELECT COUNT(*) FROM articles").Scan(&rows); err != nil {
				return fmt.Errorf("counting legacy articles: %w", err)
			}
			log.Printf("Adopting loader database with %d articles as schema version 1", rows)
			if err := setVersion(conn, 1); err != nil {
				return err
			}
			current = 1
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	log.Printf("Applying migration %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// modernc/sqlite only honors user_version outside a transaction. The DDL
	// is idempotent, so a crash before this line re-runs the migration.
	return setVersion(conn, m.Version)
}

func setVersion(conn *sql.DB, v int) error {
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", v, err)
	}
	return nil
}
