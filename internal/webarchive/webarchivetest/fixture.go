// Package webarchivetest encodes web archives for tests.
package webarchivetest

import (
	"github.com/izo/unwebarchiver/internal/bplist/bplisttest"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

// Encode lays out a as a binary property list. Key strings are written once
// and shared by every dictionary that uses them. WebSubresources is omitted
// when a.SubResources is nil.
func Encode(a *webarchive.WebArchive) []byte {
	e := &encoder{b: bplisttest.New(), keys: make(map[string]uint64)}
	return e.b.Bytes(e.archive(a))
}

// Page returns the encoding of an archive with a single main resource.
func Page(url, mimeType string, data []byte) []byte {
	return Encode(&webarchive.WebArchive{
		MainResource: webarchive.Resource{URL: url, MIMEType: mimeType, Data: data},
	})
}

type encoder struct {
	b    *bplisttest.Builder
	keys map[string]uint64
}

func (e *encoder) key(s string) uint64 {
	if ref, ok := e.keys[s]; ok {
		return ref
	}
	ref := e.b.String(s)
	e.keys[s] = ref
	return ref
}

func (e *encoder) archive(a *webarchive.WebArchive) uint64 {
	keys := []uint64{e.key(webarchive.KeyMainResource)}
	vals := []uint64{e.resource(a.MainResource)}

	if a.SubResources != nil {
		refs := make([]uint64, len(a.SubResources))
		for i, r := range a.SubResources {
			refs[i] = e.resource(r)
		}
		keys = append(keys, e.key(webarchive.KeySubresources))
		vals = append(vals, e.b.Array(refs...))
	}
	if len(a.SubframeArchives) > 0 {
		refs := make([]uint64, len(a.SubframeArchives))
		for i, sub := range a.SubframeArchives {
			refs[i] = e.archive(sub)
		}
		keys = append(keys, e.key(webarchive.KeySubframeArchives))
		vals = append(vals, e.b.Array(refs...))
	}
	return e.b.Dict(keys, vals)
}

func (e *encoder) resource(r webarchive.Resource) uint64 {
	keys := []uint64{e.key(webarchive.KeyURL), e.key(webarchive.KeyMIMEType), e.key(webarchive.KeyData)}
	vals := []uint64{e.b.String(r.URL), e.b.String(r.MIMEType), e.b.Data(r.Data)}
	if r.TextEncodingName != "" {
		keys = append(keys, e.key(webarchive.KeyTextEncodingName))
		vals = append(vals, e.b.String(r.TextEncodingName))
	}
	if r.FrameName != "" {
		keys = append(keys, e.key(webarchive.KeyFrameName))
		vals = append(vals, e.b.String(r.FrameName))
	}
	return e.b.Dict(keys, vals)
}
