package bplist

import "bytes"

// Magic is the fixed prefix of every binary property list.
const Magic = "bplist"

const (
	headerSize  = 8
	trailerSize = 32
)

// Trailer holds the document metadata stored in the final 32 bytes of the
// container. The first five bytes of the trailer are unused.
type Trailer struct {
	SortVersion      uint8
	OffsetEntrySize  uint8
	ReferenceSize    uint8
	ObjectCount      uint64
	TopObjectIndex   uint64
	OffsetTableStart uint64
}

// Document is a parsed container: header, trailer and the offset table
// mapping each object index to the absolute offset of its marker byte.
type Document struct {
	// FormatTag is the 8-byte header, e.g. "bplist00".
	FormatTag string
	Trailer   Trailer
	Offsets   []uint64

	cur  Cursor
	opts optionData
}

// Parse validates the header, reads the trailer and reconstructs the
// offset table of buf. No object is decoded yet.
//
// Only the 6-byte "bplist" magic is checked. The two version bytes that
// follow are accepted as written and kept in Document.FormatTag.
func Parse(buf []byte, opts ...Option) (*Document, error) {
	if len(buf) < headerSize+trailerSize {
		return nil, newError(ErrTruncatedTrailer, 0, "buffer is %d bytes, need at least %d", len(buf), headerSize+trailerSize)
	}
	if !bytes.HasPrefix(buf, []byte(Magic)) {
		return nil, newError(ErrBadMagic, 0, "header %q", buf[:headerSize])
	}

	doc := &Document{
		FormatTag: string(buf[:headerSize]),
		cur:       NewCursor(buf),
		opts:      newOptionData(opts),
	}
	t, err := readTrailer(doc.cur)
	if err != nil {
		return nil, err
	}
	doc.Trailer = t

	if doc.Offsets, err = readOffsetTable(doc.cur, t); err != nil {
		return nil, err
	}
	if t.TopObjectIndex >= t.ObjectCount {
		return nil, newError(ErrInvalidReference, doc.trailerStart()+16,
			"top object %d, object count %d", t.TopObjectIndex, t.ObjectCount)
	}
	return doc, nil
}

func (d *Document) trailerStart() uint64 {
	return d.cur.Len() - trailerSize
}

func readTrailer(c Cursor) (Trailer, error) {
	start := c.Len() - trailerSize
	raw, err := c.ReadBytes(start, trailerSize)
	if err != nil {
		return Trailer{}, err
	}
	t := Trailer{
		SortVersion:     raw[5],
		OffsetEntrySize: raw[6],
		ReferenceSize:   raw[7],
	}
	if t.OffsetEntrySize < 1 || t.OffsetEntrySize > 4 {
		return Trailer{}, newError(ErrInvalidFieldValue, start+6, "offset entry size %d", t.OffsetEntrySize)
	}
	if t.ReferenceSize < 1 || t.ReferenceSize > 2 {
		return Trailer{}, newError(ErrInvalidFieldValue, start+7, "reference size %d", t.ReferenceSize)
	}
	if t.ObjectCount, err = c.ReadUint(start+8, 8); err != nil {
		return Trailer{}, err
	}
	if t.TopObjectIndex, err = c.ReadUint(start+16, 8); err != nil {
		return Trailer{}, err
	}
	if t.OffsetTableStart, err = c.ReadUint(start+24, 8); err != nil {
		return Trailer{}, err
	}
	return t, nil
}

// readOffsetTable reads ObjectCount entries of OffsetEntrySize bytes each,
// which must end at or before the trailer.
func readOffsetTable(c Cursor, t Trailer) ([]uint64, error) {
	end := c.Len() - trailerSize
	width := uint64(t.OffsetEntrySize)
	if t.OffsetTableStart < headerSize || t.OffsetTableStart > end {
		return nil, newError(ErrOffsetTableOverrun, t.OffsetTableStart,
			"table starts outside [%d, %d]", headerSize, end)
	}
	if t.ObjectCount > (end-t.OffsetTableStart)/width {
		return nil, newError(ErrOffsetTableOverrun, t.OffsetTableStart,
			"%d entries of %d bytes exceed the %d bytes before the trailer",
			t.ObjectCount, width, end-t.OffsetTableStart)
	}

	offsets := make([]uint64, t.ObjectCount)
	for i := range offsets {
		v, err := c.ReadUint(t.OffsetTableStart+uint64(i)*width, int(width))
		if err != nil {
			return nil, err
		}
		offsets[i] = v
	}
	return offsets, nil
}
