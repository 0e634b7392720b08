// Package index provides a SQLite-backed index of library archives and their
// resources, with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS archives (
	path           TEXT PRIMARY KEY,
	checksum       TEXT NOT NULL DEFAULT '',
	main_url       TEXT NOT NULL DEFAULT '',
	main_mime      TEXT NOT NULL DEFAULT '',
	domain         TEXT NOT NULL DEFAULT '',
	resource_count INTEGER NOT NULL DEFAULT 0,
	total_bytes    INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS resources (
	archive_path TEXT NOT NULL REFERENCES archives(path) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	domain       TEXT NOT NULL DEFAULT '',
	file_name    TEXT NOT NULL DEFAULT '',
	mime_type    TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT 0,
	body         TEXT NOT NULL DEFAULT '',
	UNIQUE(archive_path, position)
);

CREATE INDEX IF NOT EXISTS idx_archives_domain ON archives(domain);
CREATE INDEX IF NOT EXISTS idx_resources_domain ON resources(domain);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
