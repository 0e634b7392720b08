package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/izo/unwebarchiver/internal/apperr"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

const (
	defaultMaxUpload = 64 << 20 // 64 MB
	// multipartSlack covers form boundaries and headers around the file.
	multipartSlack = 1 << 20
)

// upload is an archive received in a request body.
type upload struct {
	data        []byte
	fileName    string
	contentType string
	path        string
}

// readUpload accepts either multipart/form-data with a "file" field or a raw
// archive body. The target path is taken from the "path" form or query value.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return upload{}, bodyError(err)
		}
		return upload{
			data:        data,
			contentType: r.Header.Get("Content-Type"),
			path:        r.URL.Query().Get("path"),
		}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return upload{}, bodyError(err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, fmt.Errorf("%w: missing 'file' field in multipart form", apperr.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, bodyError(err)
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = webarchive.MIMEType
	}
	p := r.FormValue("path")
	if p == "" {
		p = r.URL.Query().Get("path")
	}
	return upload{data: data, fileName: header.Filename, contentType: ct, path: p}, nil
}

func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: body exceeds %d bytes", apperr.ErrTooLarge, tooBig.Limit)
	}
	return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
}

func newInspectResponse(a *webarchive.WebArchive) InspectResponse {
	total := a.TotalBytes()
	return InspectResponse{
		WebArchive:    a,
		ResourceCount: len(a.Resources()),
		TotalBytes:    total,
		TotalSize:     humanize.IBytes(uint64(total)),
	}
}
