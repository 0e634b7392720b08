package export

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/izo/unwebarchiver/internal/webarchive"
)

// ManifestName is the bundle entry describing every other entry.
const ManifestName = "manifest.json"

// Compression selects how resource payloads are stored in a bundle.
type Compression uint8

const (
	// CompressionDeflate deflates text-like payloads and stores media
	// that is already compressed.
	CompressionDeflate Compression = iota
	// CompressionStore stores every payload as is.
	CompressionStore
	// CompressionZstd compresses text-like payloads with zstd (method 93).
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionStore:
		return "store"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the String form of a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "deflate":
		return CompressionDeflate, nil
	case "store":
		return CompressionStore, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("export: unknown compression %q", name)
	}
}

// BundleOptions configures Bundle.
type BundleOptions struct {
	Compression Compression
	// Modified is stamped on every entry. Zero means time.Now.
	Modified time.Time
}

// ManifestEntry describes one bundled resource.
type ManifestEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
	Main     bool   `json:"main,omitempty"`
}

// Bundle writes every resource payload of a, main resource first, into a
// ZIP archive along with a manifest. Entry names come from EntryNames.
func Bundle(w io.Writer, a *webarchive.WebArchive, opts BundleOptions) error {
	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	zw := zip.NewWriter(w)
	if opts.Compression == CompressionZstd {
		zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	}

	resources := a.Resources()
	names := EntryNames(resources)
	manifest := make([]ManifestEntry, len(resources))
	for i, r := range resources {
		hdr := &zip.FileHeader{
			Name:     names[i],
			Method:   method(opts.Compression, r.MIMEType),
			Modified: modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("export: create %s: %w", names[i], err)
		}
		if _, err := fw.Write(r.Data); err != nil {
			return fmt.Errorf("export: write %s: %w", names[i], err)
		}
		manifest[i] = ManifestEntry{Name: names[i], URL: r.URL, MIMEType: r.MIMEType, Size: r.Size(), Main: i == 0}
	}

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("export: create manifest: %w", err)
	}
	enc := json.NewEncoder(fw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("export: write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export: close bundle: %w", err)
	}
	return nil
}

// Extract writes every resource payload of a under dir using the bundle
// entry names and returns the paths written.
func Extract(dir string, a *webarchive.WebArchive) ([]string, error) {
	resources := a.Resources()
	names := EntryNames(resources)
	written := make([]string, 0, len(names))
	for i, r := range resources {
		p := filepath.Join(dir, filepath.FromSlash(names[i]))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return written, fmt.Errorf("export: mkdir: %w", err)
		}
		if err := os.WriteFile(p, r.Data, 0o644); err != nil {
			return written, fmt.Errorf("export: write %s: %w", names[i], err)
		}
		written = append(written, p)
	}
	return written, nil
}

func method(c Compression, mimeType string) uint16 {
	if c == CompressionStore || precompressed(mimeType) {
		return zip.Store
	}
	if c == CompressionZstd {
		return zstd.ZipMethodWinZip
	}
	return zip.Deflate
}

func precompressed(mimeType string) bool {
	mt, _, _ := mime.ParseMediaType(mimeType)
	switch {
	case mt == "image/svg+xml":
		return false
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"):
		return true
	}
	switch mt {
	case "font/woff", "font/woff2", "application/zip", "application/gzip", "application/pdf":
		return true
	}
	return false
}

// EntryNames returns a unique, slash-separated relative name for each
// resource. Network resources map to "<host>/<path>", with directory-like
// paths ending in "index<ext>". Data URLs map to "data/<uuid><ext>" where
// the UUID is derived from the URL, so names are stable across runs.
func EntryNames(resources []webarchive.Resource) []string {
	seen := make(map[string]struct{}, len(resources))
	names := make([]string, len(resources))
	for i, r := range resources {
		name := entryName(r)
		base, ext := splitExt(name)
		for n := 2; ; n++ {
			if _, dup := seen[name]; !dup {
				break
			}
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}

func entryName(r webarchive.Resource) string {
	if r.IsDataURL() {
		return "data/" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(r.URL)).String() + extensionFor(r.MIMEType)
	}

	host, p := "local", ""
	if u, err := url.Parse(r.URL); err == nil {
		if u.Host != "" {
			host = strings.ReplaceAll(u.Host, ":", "_")
		}
		p = u.Path
	}
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index" + extensionFor(r.MIMEType)
	}
	// Rooting before Clean drops any ".." that would escape the host dir.
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return host + "/" + p
}

func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

var knownExtensions = map[string]string{
	"text/html":              ".html",
	"text/css":               ".css",
	"text/plain":             ".txt",
	"text/javascript":        ".js",
	"application/javascript": ".js",
	"application/json":       ".json",
	"image/png":              ".png",
	"image/jpeg":             ".jpg",
	"image/gif":              ".gif",
	"image/webp":             ".webp",
	"image/svg+xml":          ".svg",
	"image/x-icon":           ".ico",
	"font/woff":              ".woff",
	"font/woff2":             ".woff2",
}

func extensionFor(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := knownExtensions[mt]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
