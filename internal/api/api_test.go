package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/izo/unwebarchiver/internal/archiveservice"
	"github.com/izo/unwebarchiver/internal/testutil"
	"github.com/izo/unwebarchiver/internal/webarchive"
	"github.com/izo/unwebarchiver/internal/webarchive/webarchivetest"
)

// testEnv sets up a temp library, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*archiveservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithLibrary(t, RouterConfig{AuthEnabled: authToken != "", Token: authToken})
	return svc, router
}

func testEnvWithLibrary(t *testing.T, cfg RouterConfig) (*archiveservice.Service, http.Handler, string) {
	t.Helper()
	dir, store := testutil.TestLibrary(t)
	svc := archiveservice.NewService(store, testutil.TestDB(t), archiveservice.Config{MaxArchiveBytes: cfg.MaxUpload})
	return svc, NewRouter(svc, cfg), dir
}

func sampleArchive() []byte {
	return webarchivetest.Encode(&webarchive.WebArchive{
		MainResource: webarchive.Resource{
			URL: "https://example.com/garden/index.html", MIMEType: "text/html", TextEncodingName: "UTF-8",
			Data: []byte("<html><body><p>Tomatoes ripen slowly</p></body></html>"),
		},
		SubResources: []webarchive.Resource{
			{URL: "https://static.example.com/a.css", MIMEType: "text/css", Data: []byte("p{color:red}")},
			{URL: "data:image/gif;base64,R0lGOD", MIMEType: "image/gif", Data: []byte("GIF89a")},
		},
	})
}

func uploadArchive(t *testing.T, router http.Handler, filename string, content []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/archives", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportAndGetArchive(t *testing.T) {
	_, router, dir := testEnvWithLibrary(t, RouterConfig{})

	w := uploadArchive(t, router, "garden.webarchive", sampleArchive())
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}
	var created ArchiveDetail
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Path != "garden.webarchive" || created.ResourceCount != 3 {
		t.Errorf("created = %+v", created.ArchiveSummary)
	}
	if _, err := os.Stat(filepath.Join(dir, "garden.webarchive")); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}

	w = get(router, "/archives/garden.webarchive")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got ArchiveDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.MainURL != "https://example.com/garden/index.html" {
		t.Errorf("main_url = %q", got.MainURL)
	}
	if len(got.Resources) != 3 || got.Resources[2].Domain != webarchive.DataURLDomain {
		t.Errorf("resources = %+v", got.Resources)
	}
}

func TestImportRawBodyWithPath(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/archives?path=clips/raw", bytes.NewReader(sampleArchive()))
	req.Header.Set("Content-Type", webarchive.MIMEType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}
	if w = get(router, "/archives/clips%2Fraw.webarchive"); w.Code != http.StatusOK {
		t.Errorf("encoded path get = %d", w.Code)
	}
}

func TestImportErrors(t *testing.T) {
	_, router := testEnv(t, "")

	if w := uploadArchive(t, router, "a.webarchive", sampleArchive()); w.Code != http.StatusCreated {
		t.Fatalf("first import = %d", w.Code)
	}
	if w := uploadArchive(t, router, "a.webarchive", sampleArchive()); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", w.Code)
	}
	if w := uploadArchive(t, router, "b.webarchive", []byte("<html>not an archive</html>")); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("garbage = %d, want 422", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/archives?path=c", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("json body = %d, want 415", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("path", "x")
	mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/archives", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestImportTooLarge(t *testing.T) {
	_, router, _ := testEnvWithLibrary(t, RouterConfig{MaxUpload: 64})
	if w := uploadArchive(t, router, "big.webarchive", sampleArchive()); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized = %d, want 413", w.Code)
	}
}

func TestDeleteArchive(t *testing.T) {
	_, router := testEnv(t, "")
	uploadArchive(t, router, "del.webarchive", sampleArchive())

	req := httptest.NewRequest(http.MethodDelete, "/archives/del.webarchive", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = get(router, "/archives/del.webarchive"); w.Code != http.StatusNotFound {
		t.Errorf("after delete = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/archives/del.webarchive", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListArchives(t *testing.T) {
	_, router := testEnv(t, "")
	uploadArchive(t, router, "one.webarchive", sampleArchive())
	uploadArchive(t, router, "two.webarchive", sampleArchive())

	w := get(router, "/archives?sort=path&limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp ArchiveListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Archives) != 1 || resp.Archives[0].Path != "one.webarchive" {
		t.Errorf("list = %+v", resp)
	}

	if w = get(router, "/archives?sort=bogus"); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}

	w = get(router, "/archives?domain=static.example.com")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("domain filter total = %d", resp.Total)
	}
}

func TestGetResource(t *testing.T) {
	_, router := testEnv(t, "")
	uploadArchive(t, router, "res.webarchive", sampleArchive())

	w := get(router, "/resources/res.webarchive")
	if w.Code != http.StatusOK {
		t.Fatalf("main resource = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=UTF-8" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Tomatoes") {
		t.Errorf("body = %q", w.Body.String())
	}

	w = get(router, "/resources/res.webarchive?position=1")
	if w.Body.String() != "p{color:red}" {
		t.Errorf("subresource body = %q", w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" || !strings.HasSuffix(etag, `-1"`) {
		t.Fatalf("etag = %q", etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/resources/res.webarchive?position=1", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", w.Code)
	}

	if w = get(router, "/resources/res.webarchive?position=9"); w.Code != http.StatusNotFound {
		t.Errorf("out of range = %d, want 404", w.Code)
	}
	if w = get(router, "/resources/res.webarchive?position=x"); w.Code != http.StatusBadRequest {
		t.Errorf("bad position = %d, want 400", w.Code)
	}
}

func TestExportArchive(t *testing.T) {
	_, router := testEnv(t, "")
	uploadArchive(t, router, "exp.webarchive", sampleArchive())

	w := get(router, "/exports/md/exp.webarchive")
	if w.Code != http.StatusOK {
		t.Fatalf("markdown export = %d, body = %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "exp.md") {
		t.Errorf("disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "a.css") {
		t.Errorf("markdown missing subresource: %s", w.Body.String())
	}

	w = get(router, "/exports/zip/exp.webarchive")
	if w.Code != http.StatusOK {
		t.Fatalf("zip export = %d", w.Code)
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) < 3 {
		t.Errorf("zip entries = %d", len(zr.File))
	}

	if w = get(router, "/exports/pdf/exp.webarchive"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown format = %d, want 400", w.Code)
	}
	if w = get(router, "/exports/html/missing.webarchive"); w.Code != http.StatusNotFound {
		t.Errorf("missing archive = %d, want 404", w.Code)
	}
}

func TestInspect(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/inspect", bytes.NewReader(sampleArchive()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("inspect = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		MainResource  webarchive.Resource   `json:"main_resource"`
		SubResources  []webarchive.Resource `json:"sub_resources"`
		ResourceCount int                   `json:"resource_count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ResourceCount != 3 || resp.MainResource.FileName != "index.html" || len(resp.SubResources) != 2 {
		t.Errorf("inspect = %+v", resp)
	}

	if w = get(router, "/archives"); !strings.Contains(w.Body.String(), `"total":0`) {
		t.Errorf("inspect stored something: %s", w.Body.String())
	}
}

func TestSearchAndDomains(t *testing.T) {
	_, router := testEnv(t, "")
	uploadArchive(t, router, "s.webarchive", sampleArchive())

	w := get(router, "/search?q=tomatoes")
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) == 0 || sr.Results[0].ArchivePath != "s.webarchive" {
		t.Errorf("results = %+v", sr.Results)
	}

	w = get(router, "/domains")
	var dr DomainsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &dr)
	if len(dr.Domains) != 3 {
		t.Errorf("domains = %+v", dr.Domains)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(router, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetArchive_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(router, "/archives/nope.webarchive"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/archives", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := get(router, "/archives"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/archives", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestImport_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "tok")
	if w := uploadArchive(t, router, "x.webarchive", sampleArchive()); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
	if w := uploadArchive(t, router, "x.webarchive", sampleArchive(), "Authorization", "Bearer tok"); w.Code != http.StatusCreated {
		t.Errorf("upload with auth = %d, want 201", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	_, router, _ := testEnvWithLibrary(t, RouterConfig{AuthEnabled: authEnabled, Token: token, Events: sseHandler})
	return router
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")
	if w := get(router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
