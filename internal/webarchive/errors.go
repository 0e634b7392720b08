package webarchive

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTopLevelShape is returned when the container decodes but
	// its root, or a nested resource, is not shaped like a web archive.
	ErrUnsupportedTopLevelShape = errors.New("unsupported top-level shape")

	// ErrMissingRequiredKey is returned when a required key is absent or
	// holds a value of the wrong kind.
	ErrMissingRequiredKey = errors.New("missing required key")
)

// ProjectionError reports a valid container that does not describe a web
// archive. Key is the path of the offending entry, e.g.
// "WebSubresources[3].WebResourceMIMEType".
type ProjectionError struct {
	Kind   error
	Key    string
	Detail string
}

func (e *ProjectionError) Error() string {
	msg := "webarchive: " + e.Kind.Error()
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProjectionError) Unwrap() error {
	return e.Kind
}

func shapeError(key, format string, args ...any) *ProjectionError {
	return &ProjectionError{Kind: ErrUnsupportedTopLevelShape, Key: key, Detail: fmt.Sprintf(format, args...)}
}

func missingKey(key, format string, args ...any) *ProjectionError {
	return &ProjectionError{Kind: ErrMissingRequiredKey, Key: key, Detail: fmt.Sprintf(format, args...)}
}
