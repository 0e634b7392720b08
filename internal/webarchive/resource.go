package webarchive

import (
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
)

// DataURLDomain is the domain reported for resources whose URL has no host,
// such as embedded data URIs.
const DataURLDomain = "Data URL"

// Resource is one projected web resource. Domain and FileName are derived
// from URL when the archive is projected.
type Resource struct {
	URL              string `json:"url"`
	MIMEType         string `json:"mime_type"`
	Data             []byte `json:"-"`
	TextEncodingName string `json:"text_encoding_name,omitempty"`
	FrameName        string `json:"frame_name,omitempty"`

	Domain   string `json:"domain"`
	FileName string `json:"file_name"`
}

// Size returns the payload length in bytes.
func (r Resource) Size() int {
	return len(r.Data)
}

// HumanSize formats Size in binary units, e.g. "12 KiB".
func (r Resource) HumanSize() string {
	return humanize.IBytes(uint64(len(r.Data)))
}

// IsDataURL reports whether the resource is an embedded data URI.
func (r Resource) IsDataURL() bool {
	return strings.HasPrefix(strings.ToLower(r.URL), "data:")
}

// splitURL derives the display domain and file name of raw. An unparseable
// URL yields an empty domain.
func splitURL(raw string) (domain, fileName string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "/"
	}
	domain = u.Host
	if domain == "" {
		domain = DataURLDomain
	}
	return domain, lastSegment(u.Path)
}

func lastSegment(p string) string {
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return "/"
}
