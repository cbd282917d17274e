package store

// Statistics queries. They are plain SQL accepted by both SQLite and
// Postgres so every backend reports the same figures. Rankings hold the
// top 5.
const (
	QueryTotal = `SELECT COUNT(*) FROM articles`

	QueryDateRange = `SELECT COALESCE(MIN(publication_date), ''), COALESCE(MAX(publication_date), '')
		FROM articles WHERE publication_date <> ''`

	QueryTopAuthors = `SELECT author, COUNT(*) AS n FROM articles
		WHERE author <> '' GROUP BY author ORDER BY n DESC, author LIMIT 5`

	QueryTopHubs = `SELECT hubs, COUNT(*) AS n FROM articles
		WHERE hubs <> '' GROUP BY hubs ORDER BY n DESC, hubs LIMIT 5`

	QueryMostViewed = `SELECT title, views FROM articles
		WHERE views > 0 ORDER BY views DESC, id LIMIT 5`

	QueryHighestRated = `SELECT title, rating FROM articles
		WHERE rating <> 0 ORDER BY rating DESC, id LIMIT 5`
)
