package export

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BenjaminSRussell/sitemapper/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	state TEXT NOT NULL,
	started_at TIMESTAMP,
	duration_ms INTEGER,
	visited INTEGER,
	pending INTEGER,
	errors INTEGER
);

CREATE TABLE IF NOT EXISTS urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	crawl_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	url TEXT NOT NULL,
	visited BOOLEAN NOT NULL,
	FOREIGN KEY (crawl_id) REFERENCES crawls(id)
);

CREATE INDEX IF NOT EXISTS idx_urls_url ON urls(url);
CREATE INDEX IF NOT EXISTS idx_urls_crawl ON urls(crawl_id);
`

// ExportSQLite appends results as a new crawl to the database at dbPath and
// returns the crawl id
func ExportSQLite(dbPath string, results *types.Results) (int64, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return 0, fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO crawls (state, started_at, duration_ms, visited, pending, errors) VALUES (?, ?, ?, ?, ?, ?)`,
		string(results.State), results.StartedAt, results.Duration.Milliseconds(),
		results.Visited, results.Pending, results.Errors,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}
	crawlID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO urls (crawl_id, position, url, visited) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range Entries(results) {
		if _, err := stmt.Exec(crawlID, i, e.URL, e.Visited); err != nil {
			return 0, fmt.Errorf("failed to insert url: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return crawlID, nil
}
