package export

import (
	"fmt"
	"io"
	"time"

	"github.com/izo/unwebarchiver/internal/webarchive"
)

// Format names an export of a whole archive.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatZip      Format = "zip"
)

// ParseFormat validates name as a Format. "md" is accepted for Markdown.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "zip":
		return FormatZip, nil
	}
	return "", fmt.Errorf("export: unknown format %q", name)
}

// ContentType is the media type of the export.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatZip:
		return "application/zip"
	}
	return "application/octet-stream"
}

// Ext is the file extension of the export, with the leading dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	case FormatZip:
		return ".zip"
	}
	return ""
}

// Write renders a in format f. bundle configures FormatZip only.
func Write(w io.Writer, a *webarchive.WebArchive, f Format, generated time.Time, bundle BundleOptions) error {
	switch f {
	case FormatMarkdown:
		return Markdown(w, a, generated)
	case FormatHTML:
		return HTML(w, a, generated)
	case FormatZip:
		if bundle.Modified.IsZero() {
			bundle.Modified = generated
		}
		return Bundle(w, a, bundle)
	}
	return fmt.Errorf("export: unknown format %q", string(f))
}
