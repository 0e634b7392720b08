package bplist

// Cursor performs bounds-checked big-endian reads over an immutable buffer.
// It never sign-extends; callers interpret signedness themselves.
type Cursor struct {
	buf []byte
}

// NewCursor returns a Cursor over buf. The buffer must not be modified while
// the cursor is in use.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

// Len returns the length of the underlying buffer.
func (c Cursor) Len() uint64 {
	return uint64(len(c.buf))
}

// ReadUint reads an unsigned big-endian integer of width bytes at off.
// Width must be 1, 2, 3, 4 or 8.
func (c Cursor) ReadUint(off uint64, width int) (uint64, error) {
	switch width {
	case 1, 2, 3, 4, 8:
	default:
		return 0, newError(ErrInvalidFieldValue, off, "integer width %d", width)
	}
	b, err := c.ReadBytes(off, uint64(width))
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

// ReadBytes returns a read-only view of n bytes at off. The returned slice
// has its capacity clipped so appends never write into the buffer.
func (c Cursor) ReadBytes(off, n uint64) ([]byte, error) {
	size := c.Len()
	if off > size || n > size-off {
		return nil, newError(ErrOutOfBounds, off, "reading %d bytes from a %d byte buffer", n, size)
	}
	end := off + n
	return c.buf[off:end:end], nil
}
