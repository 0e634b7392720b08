package index

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/izo/unwebarchiver/internal/bplist"
	"github.com/izo/unwebarchiver/internal/checksum"
	"github.com/izo/unwebarchiver/internal/models"
	"github.com/izo/unwebarchiver/internal/storage"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

// maxBodyBytes caps the searchable text kept per resource.
const maxBodyBytes = 64 << 10

// Sync walks the library and brings the index up to date:
//   - new/changed archives are decoded and upserted
//   - archives removed from disk are deleted from the index
//
// Files that fail to decode are logged and skipped.
func Sync(db ArchiveIndex, store storage.Provider, logger *slog.Logger, opts ...bplist.Option) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexArchive(db, m.Path, data, m.UpdatedAt, opts...); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteArchive(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexArchive decodes data, upserts it into db under path and returns the
// stored summary.
func IndexArchive(db ArchiveIndex, path string, data []byte, updated time.Time, opts ...bplist.Option) (models.ArchiveSummary, error) {
	a, err := webarchive.Decode(data, opts...)
	if err != nil {
		return models.ArchiveSummary{}, err
	}
	summary, rows := Summarize(path, checksum.Sum(data), a, updated)
	if err := db.UpsertArchive(summary, rows); err != nil {
		return models.ArchiveSummary{}, err
	}
	return summary, nil
}

// Summarize builds the index rows of a decoded archive. Position 0 is the
// main resource.
func Summarize(path, sum string, a *webarchive.WebArchive, updated time.Time) (models.ArchiveSummary, []ResourceRow) {
	resources := a.Resources()
	summary := models.ArchiveSummary{
		Path:          path,
		Checksum:      sum,
		MainURL:       a.MainResource.URL,
		MainMIMEType:  a.MainResource.MIMEType,
		Domain:        a.MainResource.Domain,
		ResourceCount: len(resources),
		TotalBytes:    int64(a.TotalBytes()),
		UpdatedAt:     updated,
	}

	rows := make([]ResourceRow, len(resources))
	for i, r := range resources {
		rows[i] = ResourceRow{
			ResourceEntry: models.ResourceEntry{
				ArchivePath: path,
				Position:    i,
				URL:         r.URL,
				Domain:      r.Domain,
				FileName:    r.FileName,
				MIMEType:    r.MIMEType,
				Size:        int64(r.Size()),
			},
		}
		if r.IsText() {
			rows[i].Body = truncate(r.PlainText(), maxBodyBytes)
		}
	}
	return summary, rows
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
