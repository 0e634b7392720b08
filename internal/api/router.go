package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/izo/unwebarchiver/internal/archiveservice"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// MaxUpload bounds archive request bodies. Zero uses 64 MB.
	MaxUpload int64
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *archiveservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.MaxUpload)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Library.
	r.Get("/archives", h.ListArchives)
	r.Post("/archives", h.ImportArchive)
	r.Get("/archives/*", h.GetArchive)
	r.Delete("/archives/*", h.DeleteArchive)

	// Resource payloads and whole-archive exports.
	r.Get("/resources/*", h.GetResource)
	r.Get("/exports/{format}/*", h.ExportArchive)

	// Stateless decoding.
	r.Post("/inspect", h.Inspect)

	// Search.
	r.Get("/search", h.Search)
	r.Get("/domains", h.Domains)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
