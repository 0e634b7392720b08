// Package bplisttest lays out binary property list bytes for tests.
package bplisttest

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Builder accumulates objects and writes them as a container. Each add
// method returns the index of the new object, to be used as a reference.
type Builder struct {
	// OffsetSize forces the offset table entry width (1-4). Zero picks the
	// smallest width that fits.
	OffsetSize uint8
	// RefSize forces the reference width (1-2). Zero picks the smallest
	// width that fits.
	RefSize uint8
	// ForceSizeEscape writes every count through the 0xF size escape, even
	// when it would fit in the marker.
	ForceSizeEscape bool
	SortVersion     uint8

	objects []func(refSize int) []byte
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) add(enc func(refSize int) []byte) uint64 {
	b.objects = append(b.objects, enc)
	return uint64(len(b.objects) - 1)
}

// Raw adds an object whose encoding is p verbatim.
func (b *Builder) Raw(p []byte) uint64 {
	p = append([]byte(nil), p...)
	return b.add(func(int) []byte { return p })
}

// Null adds the null primitive.
func (b *Builder) Null() uint64 {
	return b.Raw([]byte{0x00})
}

// Bool adds a boolean primitive.
func (b *Builder) Bool(v bool) uint64 {
	if v {
		return b.Raw([]byte{0x09})
	}
	return b.Raw([]byte{0x08})
}

// Int adds an integer in the narrowest width whose sign bit stays clear;
// negative values use 8 bytes like every known encoder.
func (b *Builder) Int(v int64) uint64 {
	switch {
	case v < 0 || v > math.MaxInt32:
		return b.Raw(intObject(uint64(v), 8))
	case v > math.MaxInt16:
		return b.Raw(intObject(uint64(v), 4))
	case v > math.MaxInt8:
		return b.Raw(intObject(uint64(v), 2))
	}
	return b.Raw(intObject(uint64(v), 1))
}

// Real adds a 64-bit real.
func (b *Builder) Real(v float64) uint64 {
	p := make([]byte, 9)
	p[0] = 0x23
	binary.BigEndian.PutUint64(p[1:], math.Float64bits(v))
	return b.Raw(p)
}

// Date adds a date secs seconds after 2001-01-01T00:00:00Z.
func (b *Builder) Date(secs float64) uint64 {
	p := make([]byte, 9)
	p[0] = 0x33
	binary.BigEndian.PutUint64(p[1:], math.Float64bits(secs))
	return b.Raw(p)
}

// Data adds a binary data object.
func (b *Builder) Data(p []byte) uint64 {
	return b.Raw(append(b.sizeHeader(0x4, len(p)), p...))
}

// ASCII adds a one-byte-per-character string. s must be Latin-1.
func (b *Builder) ASCII(s string) uint64 {
	runes := []rune(s)
	p := b.sizeHeader(0x5, len(runes))
	for _, r := range runes {
		p = append(p, byte(r))
	}
	return b.Raw(p)
}

// UTF16 adds a UTF-16BE string.
func (b *Builder) UTF16(s string) uint64 {
	units := utf16.Encode([]rune(s))
	p := b.sizeHeader(0x6, len(units))
	for _, u := range units {
		p = binary.BigEndian.AppendUint16(p, u)
	}
	return b.Raw(p)
}

// String adds s as ASCII when possible and as UTF-16 otherwise.
func (b *Builder) String(s string) uint64 {
	for _, r := range s {
		if r > 0x7F {
			return b.UTF16(s)
		}
	}
	return b.ASCII(s)
}

// Array adds an array referencing refs.
func (b *Builder) Array(refs ...uint64) uint64 {
	return b.container(0xA, refs)
}

// Set adds a set referencing refs.
func (b *Builder) Set(refs ...uint64) uint64 {
	return b.container(0xC, refs)
}

// Dict adds a dictionary; keys and values are paired by position.
func (b *Builder) Dict(keys, values []uint64) uint64 {
	if len(keys) != len(values) {
		panic("bplisttest: keys and values differ in length")
	}
	hdr := b.sizeHeader(0xD, len(keys))
	refs := append(append([]uint64(nil), keys...), values...)
	return b.add(func(refSize int) []byte {
		p := append([]byte(nil), hdr...)
		for _, r := range refs {
			p = appendUint(p, r, refSize)
		}
		return p
	})
}

// StringDict adds a dictionary with text keys, in the order given.
func (b *Builder) StringDict(keys []string, values []uint64) uint64 {
	refs := make([]uint64, len(keys))
	for i, k := range keys {
		refs[i] = b.String(k)
	}
	return b.Dict(refs, values)
}

func (b *Builder) container(tag byte, refs []uint64) uint64 {
	hdr := b.sizeHeader(tag, len(refs))
	refs = append([]uint64(nil), refs...)
	return b.add(func(refSize int) []byte {
		p := append([]byte(nil), hdr...)
		for _, r := range refs {
			p = appendUint(p, r, refSize)
		}
		return p
	})
}

func (b *Builder) sizeHeader(tag byte, n int) []byte {
	if n < 0x0F && !b.ForceSizeEscape {
		return []byte{tag<<4 | byte(n)}
	}
	return append([]byte{tag<<4 | 0x0F}, minimalInt(uint64(n))...)
}

// Len returns the number of objects added so far.
func (b *Builder) Len() int {
	return len(b.objects)
}

// Build writes the container with top as its root object and returns the
// bytes and the offset of each object.
func (b *Builder) Build(top uint64) ([]byte, []uint64) {
	refSize := int(b.RefSize)
	if refSize == 0 {
		refSize = widthFor(uint64(len(b.objects)))
		if refSize > 2 {
			refSize = 2
		}
	}

	buf := []byte("bplist00")
	offsets := make([]uint64, len(b.objects))
	for i, enc := range b.objects {
		offsets[i] = uint64(len(buf))
		buf = append(buf, enc(refSize)...)
	}

	tableStart := uint64(len(buf))
	offsetSize := int(b.OffsetSize)
	if offsetSize == 0 {
		offsetSize = widthFor(tableStart)
	}
	for _, off := range offsets {
		buf = appendUint(buf, off, offsetSize)
	}

	trailer := make([]byte, 32)
	trailer[5] = b.SortVersion
	trailer[6] = byte(offsetSize)
	trailer[7] = byte(refSize)
	binary.BigEndian.PutUint64(trailer[8:], uint64(len(b.objects)))
	binary.BigEndian.PutUint64(trailer[16:], top)
	binary.BigEndian.PutUint64(trailer[24:], tableStart)
	return append(buf, trailer...), offsets
}

// Bytes is Build without the offsets.
func (b *Builder) Bytes(top uint64) []byte {
	buf, _ := b.Build(top)
	return buf
}

func minimalInt(v uint64) []byte {
	switch {
	case v <= math.MaxUint8:
		return intObject(v, 1)
	case v <= math.MaxUint16:
		return intObject(v, 2)
	case v <= math.MaxUint32:
		return intObject(v, 4)
	}
	return intObject(v, 8)
}

func intObject(v uint64, width int) []byte {
	var code byte
	for 1<<code < width {
		code++
	}
	return appendUint([]byte{0x10 | code}, v, width)
}

// widthFor returns the smallest byte width in 1..4 able to hold v.
func widthFor(v uint64) int {
	for w := 1; w < 4; w++ {
		if v < 1<<(8*w) {
			return w
		}
	}
	return 4
}

func appendUint(p []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		p = append(p, byte(v>>(8*i)))
	}
	return p
}
