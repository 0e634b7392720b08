// Package models defines the library types shared by the index, service and
// transport layers.
package models

import "time"

// ArchiveFile is file-level metadata of a library archive.
type ArchiveFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchiveSummary is an indexed archive as returned by list operations.
type ArchiveSummary struct {
	Path          string    `json:"path"`
	Checksum      string    `json:"checksum"`
	MainURL       string    `json:"main_url"`
	MainMIMEType  string    `json:"main_mime_type"`
	Domain        string    `json:"domain"`
	ResourceCount int       `json:"resource_count"`
	TotalBytes    int64     `json:"total_bytes"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ResourceEntry is one indexed resource of an archive. Position 0 is the
// main resource; subresources follow in archive order.
type ResourceEntry struct {
	ArchivePath string `json:"archive_path"`
	Position    int    `json:"position"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	FileName    string `json:"file_name"`
	MIMEType    string `json:"mime_type"`
	Size        int64  `json:"size"`
}

// DomainCount is the number of indexed resources served from one domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// ArchiveChange describes one watcher-driven index change. Summary is nil
// for deletions.
type ArchiveChange struct {
	Kind    string          `json:"kind"`
	Path    string          `json:"path"`
	Summary *ArchiveSummary `json:"summary,omitempty"`
}
