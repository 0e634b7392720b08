// Package archiveservice coordinates the library storage, the index and the
// web archive decoder.
package archiveservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/izo/unwebarchiver/internal/apperr"
	"github.com/izo/unwebarchiver/internal/bplist"
	"github.com/izo/unwebarchiver/internal/checksum"
	"github.com/izo/unwebarchiver/internal/export"
	"github.com/izo/unwebarchiver/internal/index"
	"github.com/izo/unwebarchiver/internal/models"
	"github.com/izo/unwebarchiver/internal/storage"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

// ArchiveDetail is the full representation of an archive.
type ArchiveDetail struct {
	models.ArchiveSummary
	Resources []models.ResourceEntry `json:"resources"`
	Frames    int                    `json:"frames"`
}

// Config tunes decoding and import limits.
type Config struct {
	// MaxArchiveBytes rejects larger imports. Zero disables the limit.
	MaxArchiveBytes int64
	DecodeOptions   []bplist.Option
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.ArchiveIndex
	cfg   Config
	now   func() time.Time
}

// NewService creates a new archive service.
func NewService(store storage.Provider, db index.ArchiveIndex, cfg Config) *Service {
	return &Service{store: store, db: db, cfg: cfg, now: time.Now}
}

// DecodeOptions returns the decoder options the service was configured with.
func (s *Service) DecodeOptions() []bplist.Option {
	return s.cfg.DecodeOptions
}

// MaxArchiveBytes is the import size limit, zero when unlimited.
func (s *Service) MaxArchiveBytes() int64 {
	return s.cfg.MaxArchiveBytes
}

// Ready reports whether the index is reachable.
func (s *Service) Ready(_ context.Context) error {
	return s.db.Ping()
}

// GetArchive reads and decodes an archive from the library.
func (s *Service) GetArchive(_ context.Context, p string) (*ArchiveDetail, error) {
	data, a, err := s.load(p)
	if err != nil {
		return nil, err
	}
	return detail(p, checksum.Sum(data), a, s.now()), nil
}

// ImportArchive validates data as a web archive and stores it at p, adding
// the library extension when missing. contentType, when set, must be a web
// archive or generic binary type.
func (s *Service) ImportArchive(_ context.Context, p string, data []byte, contentType string) (*ArchiveDetail, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, err
	}
	if s.cfg.MaxArchiveBytes > 0 && int64(len(data)) > s.cfg.MaxArchiveBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", apperr.ErrTooLarge, len(data), s.cfg.MaxArchiveBytes)
	}
	p, err := ArchivePath(p)
	if err != nil {
		return nil, err
	}

	a, err := s.decode(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, data); err != nil {
		return nil, err
	}

	sum := checksum.Sum(data)
	summary, rows := index.Summarize(p, sum, a, s.now())
	if err := s.db.UpsertArchive(summary, rows); err != nil {
		return nil, err
	}
	return detail(p, sum, a, summary.UpdatedAt), nil
}

// DeleteArchive removes an archive from storage and index.
func (s *Service) DeleteArchive(_ context.Context, p string) error {
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteArchive(p)
}

// ListArchives returns a page of indexed archives.
func (s *Service) ListArchives(_ context.Context, q index.ListQuery) ([]models.ArchiveSummary, int, error) {
	items, total, err := s.db.ListArchives(q)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Domains returns per-domain resource counts across the library.
func (s *Service) Domains(_ context.Context) ([]models.DomainCount, error) {
	return s.db.Domains()
}

// Resource returns the resource at position of archive p together with the
// archive checksum. Position 0 is the main resource.
func (s *Service) Resource(_ context.Context, p string, position int) (*webarchive.Resource, string, error) {
	data, a, err := s.load(p)
	if err != nil {
		return nil, "", err
	}
	resources := a.Resources()
	if position < 0 || position >= len(resources) {
		return nil, "", fmt.Errorf("%w: resource %d of %d", apperr.ErrNotFound, position, len(resources))
	}
	return &resources[position], checksum.Sum(data), nil
}

// Inspect decodes data without touching the library.
func (s *Service) Inspect(_ context.Context, data []byte) (*webarchive.WebArchive, error) {
	return s.decode(data)
}

// Export renders archive p in format f to w.
func (s *Service) Export(_ context.Context, w io.Writer, p string, f export.Format) error {
	_, a, err := s.load(p)
	if err != nil {
		return err
	}
	return export.Write(w, a, f, s.now(), export.BundleOptions{})
}

func (s *Service) load(p string) ([]byte, *webarchive.WebArchive, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	a, err := s.decode(data)
	if err != nil {
		return nil, nil, err
	}
	return data, a, nil
}

func (s *Service) decode(data []byte) (*webarchive.WebArchive, error) {
	a, err := webarchive.Decode(data, s.cfg.DecodeOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrNotWebArchive, err)
	}
	return a, nil
}

// ArchivePath cleans a library path and appends the archive extension when
// it is missing.
func ArchivePath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: empty path", apperr.ErrInvalidInput)
	}
	if !storage.IsArchive(path.Base(p)) {
		p += storage.Ext
	}
	return p, nil
}

func checkContentType(ct string) error {
	if ct == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return fmt.Errorf("%w: %q", apperr.ErrUnsupportedMediaType, ct)
	}
	switch mt {
	case webarchive.MIMEType, "application/octet-stream":
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrUnsupportedMediaType, mt)
}

func detail(p, sum string, a *webarchive.WebArchive, updated time.Time) *ArchiveDetail {
	summary, rows := index.Summarize(p, sum, a, updated)
	entries := make([]models.ResourceEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.ResourceEntry
	}
	return &ArchiveDetail{ArchiveSummary: summary, Resources: entries, Frames: len(a.SubframeArchives)}
}
