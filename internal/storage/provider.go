// Package storage defines the archive library file-system abstraction.
package storage

import (
	"strings"

	"github.com/izo/unwebarchiver/internal/models"
)

// Ext is the file extension of archives kept in the library.
const Ext = ".webarchive"

// Provider is the interface for library file operations. Paths are
// slash-separated and relative to the library root.
type Provider interface {
	// List returns metadata for every .webarchive file under dir.
	List(dir string) ([]models.ArchiveFile, error)
	// Stat returns metadata for a single archive.
	Stat(path string) (models.ArchiveFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

// IsArchive reports whether name carries the library extension.
func IsArchive(name string) bool {
	return len(name) > len(Ext) && strings.EqualFold(name[len(name)-len(Ext):], Ext)
}
