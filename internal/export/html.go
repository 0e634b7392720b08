package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/izo/unwebarchiver/internal/webarchive"
)

var (
	markdownOnce sync.Once
	markdownConv goldmark.Markdown
)

func converter() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownConv = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownConv
}

var printPage = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; }
h1 { color: #333; border-bottom: 2px solid #7224d8; padding-bottom: 10px; }
h2 { color: #666; margin-top: 30px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f2f2f2; font-weight: bold; }
tr:nth-child(even) { background-color: #f9f9f9; }
td:last-child { word-break: break-all; font-family: monospace; font-size: 12px; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML writes the Markdown report as a self-contained page styled for
// printing to PDF.
func HTML(w io.Writer, a *webarchive.WebArchive, generated time.Time) error {
	var md bytes.Buffer
	if err := Markdown(&md, a, generated); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := converter().Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("export: render markdown: %w", err)
	}

	err := printPage.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: "WebArchive Export: " + a.MainResource.URL,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return fmt.Errorf("export: write html: %w", err)
	}
	return nil
}
