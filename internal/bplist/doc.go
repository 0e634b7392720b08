// Package bplist decodes binary property lists, the self-describing object
// container used by Safari web archives.
//
// A container is laid out as
//
//	header        "bplist" + 2 version bytes
//	object data   marker byte + payload, per object
//	offset table  ObjectCount big-endian integers of OffsetEntrySize bytes
//	trailer       32 bytes, see Trailer
//
// Parse reads the header, trailer and offset table. Document.Decode then
// walks the object graph from a given index, following fixed-width
// reference slots in arrays and dictionaries, and returns a tree of Value.
// The decoder is read-only and rejects malformed input with a *DecodeError
// instead of returning a partial tree. Unknown object tags decode to Null.
package bplist
