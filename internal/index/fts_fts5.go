//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS resources_fts USING fts5(
			archive_path UNINDEXED,
			position UNINDEXED,
			url,
			file_name,
			domain,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, archivePath string, r ResourceRow) error {
	_, err := tx.Exec(`INSERT INTO resources_fts (archive_path, position, url, file_name, domain, body) VALUES (?, ?, ?, ?, ?, ?)`,
		archivePath, r.Position, r.URL, r.FileName, r.Domain, r.Body)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, archivePath string) {
	_, _ = tx.Exec(`DELETE FROM resources_fts WHERE archive_path = ?`, archivePath)
}

// Search performs an FTS5 full-text search and returns matching resources with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.archive_path,
		       f.position,
		       f.url,
		       r.mime_type,
		       snippet(f, 5, '<b>', '</b>', '...', 32)
		FROM resources_fts f
		JOIN resources r ON r.archive_path = f.archive_path AND r.position = f.position
		WHERE f MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
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
