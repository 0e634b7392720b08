package webarchive

import (
	"mime"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

// mediaType returns the lower-cased MIME type without parameters.
func (r Resource) mediaType() (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(r.MIMEType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(r.MIMEType)), nil
	}
	return mt, params
}

// IsText reports whether the payload is textual and can be shown inline.
func (r Resource) IsText() bool {
	mt, _ := r.mediaType()
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/javascript", "application/json", "application/xml",
		"application/xhtml+xml", "image/svg+xml":
		return true
	}
	return false
}

// Text returns the payload decoded to UTF-8. The charset comes from the
// MIME type parameter, then TextEncodingName; unknown or absent charsets
// are treated as UTF-8 and invalid sequences are replaced.
func (r Resource) Text() string {
	_, params := r.mediaType()
	name := params["charset"]
	if name == "" {
		name = r.TextEncodingName
	}
	if name != "" {
		if enc, err := htmlindex.Get(name); err == nil {
			if out, err := enc.NewDecoder().Bytes(r.Data); err == nil {
				return string(out)
			}
		}
	}
	return strings.ToValidUTF8(string(r.Data), "�")
}

// PlainText is Text with HTML markup reduced to its visible text, with
// runs of whitespace collapsed. Non-HTML payloads are returned as Text.
func (r Resource) PlainText() string {
	s := r.Text()
	if mt, _ := r.mediaType(); mt != "text/html" && mt != "application/xhtml+xml" {
		return s
	}

	var words []string
	skip := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(words, " ")
		case html.StartTagToken:
			if hidden(z) {
				skip++
			}
		case html.EndTagToken:
			if hidden(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				words = append(words, strings.Fields(string(z.Text()))...)
			}
		}
	}
}

func hidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}
