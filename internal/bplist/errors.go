package bplist

import (
	"errors"
	"fmt"
)

// Sentinel errors describing why a container was rejected. They are always
// returned wrapped in a *DecodeError; compare with errors.Is.
var (
	// ErrTruncatedTrailer is returned when the buffer cannot hold the header
	// and the fixed-size trailer.
	ErrTruncatedTrailer = errors.New("truncated trailer")

	// ErrBadMagic is returned when the header does not start with "bplist".
	ErrBadMagic = errors.New("bad magic")

	// ErrInvalidFieldValue is returned for trailer fields or object markers
	// holding values outside their permitted range.
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrOffsetTableOverrun is returned when the declared offset table does
	// not fit between its start offset and the trailer.
	ErrOffsetTableOverrun = errors.New("offset table overrun")

	// ErrOutOfBounds is returned when a read runs past the end of the buffer.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrInvalidReference is returned when an object reference names an
	// index outside the offset table.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrRecursionLimitExceeded is returned when the object graph is cyclic
	// or deeper than the document can legitimately be.
	ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")

	// ErrUnsupportedObject is returned for object layouts this decoder does
	// not materialise (128-bit integers, odd-width reals).
	ErrUnsupportedObject = errors.New("unsupported object")
)

// DecodeError reports a terminal decode failure together with the byte
// offset, and the marker byte when one had been read, where it occurred.
type DecodeError struct {
	Kind      error
	Offset    uint64
	Marker    byte
	HasMarker bool
	Detail    string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("bplist: %s at offset 0x%X", e.Kind, e.Offset)
	if e.HasMarker {
		msg += fmt.Sprintf(" (marker 0x%02X)", e.Marker)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func newError(kind error, off uint64, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Offset: off, Detail: fmt.Sprintf(format, args...)}
}

// withMarker attaches the marker of the object being decoded to err unless
// a nested object already attached its own.
func withMarker(err error, marker byte) error {
	var de *DecodeError
	if errors.As(err, &de) && !de.HasMarker {
		de.Marker = marker
		de.HasMarker = true
	}
	return err
}
