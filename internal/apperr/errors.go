// Package apperr defines application-level errors shared by the service and
// transport layers.
package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrNotWebArchive        = errors.New("not a web archive")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrTooLarge             = errors.New("archive too large")
	ErrInvalidInput         = errors.New("invalid input")
)
