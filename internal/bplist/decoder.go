package bplist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Type tags, stored in the high nibble of an object's marker byte.
const (
	tagPrimitive = 0x0
	tagInt       = 0x1
	tagReal      = 0x2
	tagDate      = 0x3
	tagData      = 0x4
	tagASCII     = 0x5
	tagUTF16     = 0x6
	tagUID       = 0x8
	tagArray     = 0xA
	tagSet       = 0xC
	tagDict      = 0xD
)

// Low-nibble codes of the primitive tag.
const (
	primNull  = 0x0
	primFalse = 0x8
	primTrue  = 0x9
	primFill  = 0xF
)

// sizeEscape in the low nibble defers the count to a following integer.
const sizeEscape = 0x0F

// appleEpoch is the reference date of date objects, as Unix seconds.
const appleEpoch = 978307200 // 2001-01-01T00:00:00Z

// Root decodes the top-level object named by the trailer.
func (d *Document) Root() (Value, error) {
	return d.Decode(d.Trailer.TopObjectIndex)
}

// Decode materialises the object at index and everything reachable from it.
// Each call keeps its own bookkeeping, so a Document may be decoded from
// several goroutines at once.
func (d *Document) Decode(index uint64) (Value, error) {
	s := &decodeState{
		doc:    d,
		memo:   make(map[uint64]Value),
		active: make(map[uint64]struct{}),
		limit:  d.Trailer.ObjectCount + d.opts.recursionMargin,
	}
	return s.object(index, d.trailerStart()+16)
}

// DecodeRoot parses buf and decodes its top-level object.
func DecodeRoot(buf []byte, opts ...Option) (Value, error) {
	doc, err := Parse(buf, opts...)
	if err != nil {
		return nil, err
	}
	return doc.Root()
}

// decodeState is scoped to a single Decode call. memo holds finished
// objects so shared sub-objects are decoded once; active holds the indexes
// currently on the decode stack.
type decodeState struct {
	doc    *Document
	memo   map[uint64]Value
	active map[uint64]struct{}
	visits uint64
	limit  uint64
}

// object resolves index through the offset table and decodes it. refOff is
// the position of the reference that named the object, for error reports.
func (s *decodeState) object(index, refOff uint64) (Value, error) {
	if index >= uint64(len(s.doc.Offsets)) {
		return nil, newError(ErrInvalidReference, refOff, "object %d, offset table has %d entries", index, len(s.doc.Offsets))
	}
	if v, ok := s.memo[index]; ok {
		// Every reference hands out its own payload.
		if d, ok := v.(Data); ok {
			return Data(bytes.Clone(d)), nil
		}
		return v, nil
	}
	off := s.doc.Offsets[index]
	if _, ok := s.active[index]; ok {
		return nil, newError(ErrRecursionLimitExceeded, off, "object %d is its own ancestor", index)
	}
	s.visits++
	if s.visits > s.limit {
		return nil, newError(ErrRecursionLimitExceeded, off, "more than %d decode steps", s.limit)
	}

	s.active[index] = struct{}{}
	v, err := s.read(off)
	delete(s.active, index)
	if err != nil {
		return nil, err
	}
	s.memo[index] = v
	return v, nil
}

func (s *decodeState) read(off uint64) (Value, error) {
	m, err := s.doc.cur.ReadUint(off, 1)
	if err != nil {
		return nil, err
	}
	marker := byte(m)
	v, err := s.dispatch(off, marker)
	if err != nil {
		return nil, withMarker(err, marker)
	}
	return v, nil
}

func (s *decodeState) dispatch(off uint64, marker byte) (Value, error) {
	info := marker & 0x0F
	switch marker >> 4 {
	case tagPrimitive:
		switch info {
		case primFalse:
			return Bool(false), nil
		case primTrue:
			return Bool(true), nil
		case primNull, primFill:
			return Null{}, nil
		}
		s.logSkipped(off, marker, "reserved primitive")
		return Null{}, nil

	case tagInt:
		return s.readInt(off, info)

	case tagReal:
		return s.readReal(off, info)

	case tagDate:
		return s.readDate(off)

	case tagData:
		b, err := s.readSized(off, info, 1)
		if err != nil {
			return nil, err
		}
		return Data(bytes.Clone(b)), nil

	case tagASCII:
		b, err := s.readSized(off, info, 1)
		if err != nil {
			return nil, err
		}
		return decodeLatin1(b, off)

	case tagUTF16:
		b, err := s.readSized(off, info, 2)
		if err != nil {
			return nil, err
		}
		return decodeUTF16(b, off)

	case tagUID:
		// The payload is bounds-checked but UIDs carry no web-archive meaning.
		if _, err := s.doc.cur.ReadBytes(off+1, uint64(info)+1); err != nil {
			return nil, err
		}
		s.logSkipped(off, marker, "uid")
		return Null{}, nil

	case tagArray, tagSet:
		return s.readArray(off, info)

	case tagDict:
		return s.readDictionary(off, info)
	}

	s.logSkipped(off, marker, "unknown tag")
	return Null{}, nil
}

func (s *decodeState) logSkipped(off uint64, marker byte, what string) {
	s.doc.opts.logger.Debug("bplist: object decoded as null",
		slog.String("reason", what),
		slog.Uint64("offset", off),
		slog.String("marker", fmt.Sprintf("0x%02X", marker)))
}

func (s *decodeState) readInt(off uint64, info byte) (Value, error) {
	if info > 3 {
		return nil, newError(ErrUnsupportedObject, off, "%d byte integer", 1<<info)
	}
	width := 1 << info
	u, err := s.doc.cur.ReadUint(off+1, width)
	if err != nil {
		return nil, err
	}
	shift := 64 - 8*width
	return Int(int64(u<<shift) >> shift), nil
}

func (s *decodeState) readReal(off uint64, info byte) (Value, error) {
	switch info {
	case 2:
		u, err := s.doc.cur.ReadUint(off+1, 4)
		if err != nil {
			return nil, err
		}
		return Real(math.Float32frombits(uint32(u))), nil
	case 3:
		u, err := s.doc.cur.ReadUint(off+1, 8)
		if err != nil {
			return nil, err
		}
		return Real(math.Float64frombits(u)), nil
	}
	return nil, newError(ErrUnsupportedObject, off, "%d byte real", 1<<info)
}

func (s *decodeState) readDate(off uint64) (Value, error) {
	b, err := s.doc.cur.ReadBytes(off+1, 8)
	if err != nil {
		return nil, err
	}
	secs := math.Float64frombits(binary.BigEndian.Uint64(b))
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > 1<<62 {
		return nil, newError(ErrInvalidFieldValue, off+1, "date %v", secs)
	}
	whole, frac := math.Modf(secs)
	return Date(time.Unix(appleEpoch+int64(whole), int64(math.Round(frac*1e9))).UTC()), nil
}

// count returns the element count of a sized object and the offset where
// its payload starts, following the size escape when info is 0xF.
func (s *decodeState) count(off uint64, info byte) (n, start uint64, err error) {
	if info != sizeEscape {
		return uint64(info), off + 1, nil
	}
	m, err := s.doc.cur.ReadUint(off+1, 1)
	if err != nil {
		return 0, 0, err
	}
	if m>>4 != tagInt {
		return 0, 0, newError(ErrInvalidFieldValue, off+1, "size escape followed by marker 0x%02X", m)
	}
	if m&0x0F > 3 {
		return 0, 0, newError(ErrInvalidFieldValue, off+1, "%d byte size", 1<<(m&0x0F))
	}
	width := 1 << (m & 0x0F)
	if n, err = s.doc.cur.ReadUint(off+2, width); err != nil {
		return 0, 0, err
	}
	return n, off + 2 + uint64(width), nil
}

// readSized returns the payload of a data or string object whose count is
// measured in units of unit bytes.
func (s *decodeState) readSized(off uint64, info byte, unit uint64) ([]byte, error) {
	n, start, err := s.count(off, info)
	if err != nil {
		return nil, err
	}
	if err := s.checkSpan(start, n, unit); err != nil {
		return nil, err
	}
	return s.doc.cur.ReadBytes(start, n*unit)
}

// checkSpan rejects n items of unit bytes at start that would run past the
// buffer, before anything is allocated for them.
func (s *decodeState) checkSpan(start, n, unit uint64) error {
	size := s.doc.cur.Len()
	if start > size || n > (size-start)/unit {
		return newError(ErrOutOfBounds, start, "%d items of %d bytes exceed a %d byte buffer", n, unit, size)
	}
	return nil
}

func (s *decodeState) refs(start, n uint64) ([]uint64, error) {
	width := uint64(s.doc.Trailer.ReferenceSize)
	out := make([]uint64, n)
	for i := range out {
		ref, err := s.doc.cur.ReadUint(start+uint64(i)*width, int(width))
		if err != nil {
			return nil, err
		}
		out[i] = ref
	}
	return out, nil
}

func (s *decodeState) readArray(off uint64, info byte) (Value, error) {
	n, start, err := s.count(off, info)
	if err != nil {
		return nil, err
	}
	width := uint64(s.doc.Trailer.ReferenceSize)
	if err := s.checkSpan(start, n, width); err != nil {
		return nil, err
	}
	refs, err := s.refs(start, n)
	if err != nil {
		return nil, err
	}
	arr := make(Array, len(refs))
	for i, ref := range refs {
		if arr[i], err = s.object(ref, start+uint64(i)*width); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

func (s *decodeState) readDictionary(off uint64, info byte) (Value, error) {
	n, start, err := s.count(off, info)
	if err != nil {
		return nil, err
	}
	width := uint64(s.doc.Trailer.ReferenceSize)
	if err := s.checkSpan(start, n, 2*width); err != nil {
		return nil, err
	}

	keyRefs, err := s.refs(start, n)
	if err != nil {
		return nil, err
	}
	dict := make(Dictionary, len(keyRefs))
	for i, ref := range keyRefs {
		if dict[i].Key, err = s.object(ref, start+uint64(i)*width); err != nil {
			return nil, err
		}
	}

	valStart := start + n*width
	valRefs, err := s.refs(valStart, n)
	if err != nil {
		return nil, err
	}
	for i, ref := range valRefs {
		if dict[i].Value, err = s.object(ref, valStart+uint64(i)*width); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func decodeLatin1(b []byte, off uint64) (Value, error) {
	if isASCII(b) {
		return Text(b), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return nil, newError(ErrInvalidFieldValue, off, "latin-1 text: %v", err)
	}
	return Text(out), nil
}

func decodeUTF16(b []byte, off uint64) (Value, error) {
	out, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return nil, newError(ErrInvalidFieldValue, off, "utf-16 text: %v", err)
	}
	return Text(out), nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
