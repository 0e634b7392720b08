// Package export renders decoded web archives as reports and resource
// bundles.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/izo/unwebarchiver/internal/webarchive"
)

// maxDataURL is the number of characters of a data URL kept in reports.
const maxDataURL = 64

// Markdown writes a report listing the main resource and every
// subresource of a. generated is printed under the title.
func Markdown(w io.Writer, a *webarchive.WebArchive, generated time.Time) error {
	var b strings.Builder
	b.WriteString("# WebArchive Export\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", generated.Format(time.RFC1123))

	writeArchive(&b, a, 2)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("export: write markdown: %w", err)
	}
	return nil
}

func writeArchive(b *strings.Builder, a *webarchive.WebArchive, level int) {
	h := strings.Repeat("#", level)
	main := a.MainResource

	fmt.Fprintf(b, "%s Main resource\n\n", h)
	fmt.Fprintf(b, "- **URL**: %s\n", inline(displayURL(main)))
	fmt.Fprintf(b, "- **Domain**: %s\n", inline(main.Domain))
	fmt.Fprintf(b, "- **File**: %s\n", inline(main.FileName))
	fmt.Fprintf(b, "- **Size**: %s\n", main.HumanSize())
	fmt.Fprintf(b, "- **MIME type**: %s\n", inline(main.MIMEType))
	if main.TextEncodingName != "" {
		fmt.Fprintf(b, "- **Encoding**: %s\n", inline(main.TextEncodingName))
	}
	b.WriteString("\n")

	if len(a.SubResources) > 0 {
		fmt.Fprintf(b, "%s Subresources (%d)\n\n", h, len(a.SubResources))
		b.WriteString("| Domain | File | Size | MIME type | URL |\n")
		b.WriteString("|--------|------|------|-----------|-----|\n")
		for _, r := range a.SubResources {
			fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
				cell(r.Domain), cell(r.FileName), r.HumanSize(), cell(r.MIMEType), cell(displayURL(r)))
		}
		b.WriteString("\n")
	}

	for i, sub := range a.SubframeArchives {
		fmt.Fprintf(b, "%s Frame %d\n\n", h, i+1)
		writeArchive(b, sub, min(level+1, 6))
	}
}

// displayURL shortens data URLs, which can hold the whole payload.
func displayURL(r webarchive.Resource) string {
	if r.IsDataURL() && len(r.URL) > maxDataURL {
		return r.URL[:maxDataURL] + "…"
	}
	return r.URL
}

var (
	inlineReplacer = strings.NewReplacer("\r", " ", "\n", " ")
	cellReplacer   = strings.NewReplacer("|", `\|`, "\r", " ", "\n", " ")
)

func inline(s string) string { return inlineReplacer.Replace(s) }

func cell(s string) string { return cellReplacer.Replace(s) }
