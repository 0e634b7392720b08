package api

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/izo/unwebarchiver/internal/archiveservice"
	"github.com/izo/unwebarchiver/internal/checksum"
	"github.com/izo/unwebarchiver/internal/export"
	"github.com/izo/unwebarchiver/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc       *archiveservice.Service
	maxUpload int64
}

// NewHandler creates a new Handler. maxUpload bounds request bodies that
// carry an archive.
func NewHandler(svc *archiveservice.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// archivePath extracts the archive path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. saved%2Fpage.webarchive).
func archivePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListArchives handles GET /api/archives.
//
//	@Summary		List archives with optional pagination and filtering
//	@Tags			archives
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			domain	query		string	false	"Only archives with a resource from this domain"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, path, size, resources)
//	@Success		200		{object}	ArchiveListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives [get]
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListArchives(r.Context(), index.ListQuery{
		Limit:  limit,
		Offset: offset,
		Domain: q.Get("domain"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, err, "list archives")
		return
	}
	writeJSON(w, http.StatusOK, ArchiveListResponse{Archives: items, Total: total})
}

// GetArchive handles GET /api/archives/*.
//
//	@Summary		Get a single archive by path
//	@Tags			archives
//	@Produce		json
//	@Param			path	path		string	true	"Archive path"
//	@Success		200		{object}	ArchiveDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives/{path} [get]
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	p := archivePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	a, err := h.svc.GetArchive(r.Context(), p)
	if err != nil {
		writeError(w, err, "get archive", slog.String("path", p))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ImportArchive handles POST /api/archives.
//
//	@Summary		Import a web archive into the library
//	@Description	Accepts multipart/form-data with a "file" field, or a raw
//	@Description	application/x-webarchive body. The target path comes from the
//	@Description	"path" form or query value, else from the uploaded file name.
//	@Tags			archives
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	false	"Archive file"
//	@Param			path	query		string	false	"Target path in the library"
//	@Success		201		{object}	ArchiveDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives [post]
func (h *Handler) ImportArchive(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		writeError(w, err, "read upload")
		return
	}
	target := up.path
	if target == "" {
		target = up.fileName
	}
	a, err := h.svc.ImportArchive(r.Context(), target, up.data, up.contentType)
	if err != nil {
		writeError(w, err, "import archive", slog.String("path", target))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DeleteArchive handles DELETE /api/archives/*.
//
//	@Summary		Delete an archive
//	@Tags			archives
//	@Param			path	path	string	true	"Archive path"
//	@Success		204		"Archive deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives/{path} [delete]
func (h *Handler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	p := archivePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteArchive(r.Context(), p); err != nil {
		writeError(w, err, "delete archive", slog.String("path", p))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetResource handles GET /api/resources/*.
//
//	@Summary		Serve the payload of one resource
//	@Description	Position 0 is the main resource; subresources follow in
//	@Description	archive order. The response carries the resource MIME type
//	@Description	and an ETag derived from the archive checksum.
//	@Tags			resources
//	@Produce		octet-stream
//	@Param			path		path	string	true	"Archive path"
//	@Param			position	query	int		false	"Resource position"
//	@Success		200
//	@Success		304
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resources/{path} [get]
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	p := archivePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	pos := 0
	if v := r.URL.Query().Get("position"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("position must be an integer"))
			return
		}
		pos = n
	}

	res, sum, err := h.svc.Resource(r.Context(), p, pos)
	if err != nil {
		writeError(w, err, "get resource", slog.String("path", p), slog.Int("position", pos))
		return
	}

	ct := res.MIMEType
	if ct == "" {
		ct = "application/octet-stream"
	} else if res.TextEncodingName != "" && !strings.Contains(ct, "charset=") {
		ct += "; charset=" + res.TextEncodingName
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("ETag", checksum.ETag(sum, pos))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Archived pages must not run scripts against the API origin.
	w.Header().Set("Content-Security-Policy", "sandbox")
	http.ServeContent(w, r, res.FileName, time.Time{}, bytes.NewReader(res.Data))
}

// ExportArchive handles GET /api/exports/{format}/*.
//
//	@Summary		Export an archive as Markdown, HTML or a ZIP bundle
//	@Tags			exports
//	@Produce		application/zip
//	@Param			format	path	string	true	"Export format"	Enums(markdown, html, zip)
//	@Param			path	path	string	true	"Archive path"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{format}/{path} [get]
func (h *Handler) ExportArchive(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	p := archivePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf, p, f); err != nil {
		writeError(w, err, "export archive", slog.String("path", p), slog.String("format", string(f)))
		return
	}

	name := strings.TrimSuffix(path.Base(p), path.Ext(p)) + f.Ext()
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Inspect handles POST /api/inspect.
//
//	@Summary		Decode an archive without storing it
//	@Tags			archives
//	@Accept			application/x-webarchive
//	@Produce		json
//	@Success		200	{object}	InspectResponse
//	@Failure		413	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/inspect [post]
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, h.maxUpload)
	if err != nil {
		writeError(w, err, "read upload")
		return
	}
	a, err := h.svc.Inspect(r.Context(), up.data)
	if err != nil {
		writeError(w, err, "inspect archive")
		return
	}
	writeJSON(w, http.StatusOK, newInspectResponse(a))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across archived resources
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// Domains handles GET /api/domains.
//
//	@Summary		Resource counts per domain
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	DomainsResponse
//	@Security		BearerAuth
//	@Router			/domains [get]
func (h *Handler) Domains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.svc.Domains(r.Context())
	if err != nil {
		writeError(w, err, "domains")
		return
	}
	writeJSON(w, http.StatusOK, DomainsResponse{Domains: nonNil(domains)})
}

// Ready handles GET /health/ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		slog.Warn("readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
