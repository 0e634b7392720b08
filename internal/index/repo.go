package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/izo/unwebarchiver/internal/models"
)

// ResourceRow is a resource to index together with its searchable text.
type ResourceRow struct {
	models.ResourceEntry
	Body string
}

// ListQuery selects a page of archives. Domain, when set, keeps archives
// with at least one resource from that domain. Sort is one of "updated"
// (default, newest first), "path", "size" or "resources".
type ListQuery struct {
	Limit  int
	Offset int
	Domain string
	Sort   string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ArchivePath string `json:"archive_path"`
	Position    int    `json:"position"`
	URL         string `json:"url"`
	MIMEType    string `json:"mime_type"`
	Snippet     string `json:"snippet"`
}

var sortColumns = map[string]string{
	"":          "updated_at DESC",
	"updated":   "updated_at DESC",
	"path":      "path ASC",
	"size":      "total_bytes DESC",
	"resources": "resource_count DESC",
}

// UpsertArchive inserts or replaces an archive, its resources and their FTS
// entries within a transaction.
func (db *DB) UpsertArchive(a models.ArchiveSummary, resources []ResourceRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO archives (path, checksum, main_url, main_mime, domain, resource_count, total_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum       = excluded.checksum,
			main_url       = excluded.main_url,
			main_mime      = excluded.main_mime,
			domain         = excluded.domain,
			resource_count = excluded.resource_count,
			total_bytes    = excluded.total_bytes,
			updated_at     = excluded.updated_at
	`, a.Path, a.Checksum, a.MainURL, a.MainMIMEType, a.Domain, a.ResourceCount, a.TotalBytes, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert archive: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM resources WHERE archive_path = ?`, a.Path); err != nil {
		return fmt.Errorf("index: clear resources: %w", err)
	}
	ftsDelete(tx, a.Path)

	if len(resources) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO resources (archive_path, position, url, domain, file_name, mime_type, size, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare resource insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range resources {
			if _, err := stmt.Exec(a.Path, r.Position, r.URL, r.Domain, r.FileName, r.MIMEType, r.Size, r.Body); err != nil {
				return fmt.Errorf("index: insert resource: %w", err)
			}
			if err := ftsInsert(tx, a.Path, r); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteArchive removes an archive, its resources and FTS entries.
func (db *DB) DeleteArchive(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM resources WHERE archive_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM archives WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for an archive, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM archives WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const archiveColumns = `path, checksum, main_url, main_mime, domain, resource_count, total_bytes, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(s scanner) (models.ArchiveSummary, error) {
	var a models.ArchiveSummary
	err := s.Scan(&a.Path, &a.Checksum, &a.MainURL, &a.MainMIMEType, &a.Domain, &a.ResourceCount, &a.TotalBytes, &a.UpdatedAt)
	return a, err
}

// GetArchive returns one indexed archive, or nil if it is not indexed.
func (db *DB) GetArchive(path string) (*models.ArchiveSummary, error) {
	a, err := scanArchive(db.conn.QueryRow(`SELECT `+archiveColumns+` FROM archives WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get archive: %w", err)
	}
	return &a, nil
}

// ListArchives returns a page of archives and the total number matching q.
func (db *DB) ListArchives(q ListQuery) ([]models.ArchiveSummary, int, error) {
	order, ok := sortColumns[q.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", q.Sort)
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	where, args := "", []any{}
	if q.Domain != "" {
		where = `WHERE EXISTS (SELECT 1 FROM resources r WHERE r.archive_path = archives.path AND r.domain = ?)`
		args = append(args, q.Domain)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM archives `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count archives: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+archiveColumns+` FROM archives `+where+
		` ORDER BY `+order+`, path ASC LIMIT ? OFFSET ?`, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list archives: %w", err)
	}
	defer rows.Close()

	out := []models.ArchiveSummary{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// Resources returns the indexed resources of an archive in position order.
func (db *DB) Resources(path string) ([]models.ResourceEntry, error) {
	rows, err := db.conn.Query(`
		SELECT archive_path, position, url, domain, file_name, mime_type, size
		FROM resources WHERE archive_path = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("index: resources: %w", err)
	}
	defer rows.Close()

	out := []models.ResourceEntry{}
	for rows.Next() {
		var r models.ResourceEntry
		if err := rows.Scan(&r.ArchivePath, &r.Position, &r.URL, &r.Domain, &r.FileName, &r.MIMEType, &r.Size); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Domains returns the number of indexed resources per domain, most used first.
func (db *DB) Domains() ([]models.DomainCount, error) {
	rows, err := db.conn.Query(`
		SELECT domain, count(*) AS n FROM resources
		GROUP BY domain ORDER BY n DESC, domain ASC`)
	if err != nil {
		return nil, fmt.Errorf("index: domains: %w", err)
	}
	defer rows.Close()

	out := []models.DomainCount{}
	for rows.Next() {
		var d models.DomainCount
		if err := rows.Scan(&d.Domain, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllChecksums returns the checksum of every indexed archive keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM archives`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
