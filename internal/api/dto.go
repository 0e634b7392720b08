package api

import (
	"github.com/izo/unwebarchiver/internal/archiveservice"
	"github.com/izo/unwebarchiver/internal/index"
	"github.com/izo/unwebarchiver/internal/models"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

// ArchiveDetail is the full archive response type (aliased from the domain layer).
type ArchiveDetail = archiveservice.ArchiveDetail

// ArchiveSummary is a lightweight item in a list response (aliased from the models layer).
type ArchiveSummary = models.ArchiveSummary

// ArchiveListResponse wraps paginated archive listings.
type ArchiveListResponse struct {
	Archives []ArchiveSummary `json:"archives" validate:"required"`
	Total    int              `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// DomainsResponse lists resource counts per domain.
type DomainsResponse struct {
	Domains []models.DomainCount `json:"domains" validate:"required"`
}

// InspectResponse describes an archive decoded without being stored.
type InspectResponse struct {
	*webarchive.WebArchive
	ResourceCount int    `json:"resource_count" example:"12"`
	TotalBytes    int    `json:"total_bytes" example:"482113"`
	TotalSize     string `json:"total_size" example:"471 KiB"`
}
