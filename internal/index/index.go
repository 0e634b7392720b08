package index

import "github.com/izo/unwebarchiver/internal/models"

// ArchiveIndex defines the interface for archive indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ArchiveIndex interface {
	UpsertArchive(a models.ArchiveSummary, resources []ResourceRow) error
	DeleteArchive(path string) error
	GetChecksum(path string) (string, error)
	GetArchive(path string) (*models.ArchiveSummary, error)
	ListArchives(q ListQuery) ([]models.ArchiveSummary, int, error)
	Resources(path string) ([]models.ResourceEntry, error)
	Search(query string, limit int) ([]SearchResult, error)
	Domains() ([]models.DomainCount, error)
	AllChecksums() (map[string]string, error)
	Ping() error
	Close() error
}

// Verify *DB satisfies ArchiveIndex at compile time.
var _ ArchiveIndex = (*DB)(nil)
