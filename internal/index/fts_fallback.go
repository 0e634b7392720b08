//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the resources table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ ResourceRow) error {
	// Body is already stored in the resources table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT archive_path, position, url, mime_type,
		       substr(body, max(instr(lower(body), lower(?)) - 60, 1), 200)
		FROM resources
		WHERE url LIKE ? OR file_name LIKE ? OR body LIKE ?
		ORDER BY archive_path, position
		LIMIT ?
	`, query, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ArchivePath, &r.Position, &r.URL, &r.MIMEType, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
