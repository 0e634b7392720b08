// Package webarchive projects a decoded binary property list onto the
// Safari web archive schema.
package webarchive

import (
	"fmt"

	"github.com/izo/unwebarchiver/internal/bplist"
)

// Dictionary keys of the web archive schema.
const (
	KeyMainResource     = "WebMainResource"
	KeySubresources     = "WebSubresources"
	KeySubframeArchives = "WebSubframeArchives"

	KeyURL              = "WebResourceURL"
	KeyMIMEType         = "WebResourceMIMEType"
	KeyData             = "WebResourceData"
	KeyTextEncodingName = "WebResourceTextEncodingName"
	KeyFrameName        = "WebResourceFrameName"
)

// MIMEType is the media type of .webarchive files.
const MIMEType = "application/x-webarchive"

// WebArchive is a decoded web archive: one main resource, its subresources
// in encoded order, and the archives of any embedded frames.
type WebArchive struct {
	MainResource     Resource      `json:"main_resource"`
	SubResources     []Resource    `json:"sub_resources"`
	SubframeArchives []*WebArchive `json:"subframe_archives,omitempty"`
}

// Decode parses buf as a binary property list and projects it.
func Decode(buf []byte, opts ...bplist.Option) (*WebArchive, error) {
	root, err := bplist.DecodeRoot(buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("webarchive: decode: %w", err)
	}
	return FromValue(root)
}

// FromValue projects a decoded root value. The root must be a dictionary
// holding WebMainResource.
func FromValue(root bplist.Value) (*WebArchive, error) {
	return project(root, "")
}

// Resources returns the main resource followed by the subresources.
func (a *WebArchive) Resources() []Resource {
	out := make([]Resource, 0, len(a.SubResources)+1)
	out = append(out, a.MainResource)
	return append(out, a.SubResources...)
}

// TotalBytes sums the payload sizes of the main resource and subresources.
func (a *WebArchive) TotalBytes() int {
	n := a.MainResource.Size()
	for _, r := range a.SubResources {
		n += r.Size()
	}
	return n
}

func project(root bplist.Value, prefix string) (*WebArchive, error) {
	dict, ok := root.(bplist.Dictionary)
	if !ok {
		return nil, shapeError(trimKey(prefix), "root is %s, want dictionary", root.Kind())
	}

	mainVal, ok := dict.Lookup(KeyMainResource)
	if !ok {
		return nil, missingKey(prefix+KeyMainResource, "absent")
	}
	main, err := projectResource(mainVal, prefix+KeyMainResource)
	if err != nil {
		return nil, err
	}
	a := &WebArchive{MainResource: main, SubResources: []Resource{}}

	if v, ok := dict.Lookup(KeySubresources); ok {
		arr, ok := v.(bplist.Array)
		if !ok {
			return nil, shapeError(prefix+KeySubresources, "%s, want array", v.Kind())
		}
		a.SubResources = make([]Resource, 0, len(arr))
		for i, item := range arr {
			r, err := projectResource(item, fmt.Sprintf("%s%s[%d]", prefix, KeySubresources, i))
			if err != nil {
				return nil, err
			}
			a.SubResources = append(a.SubResources, r)
		}
	}

	if v, ok := dict.Lookup(KeySubframeArchives); ok {
		arr, ok := v.(bplist.Array)
		if !ok {
			return nil, shapeError(prefix+KeySubframeArchives, "%s, want array", v.Kind())
		}
		for i, item := range arr {
			sub, err := project(item, fmt.Sprintf("%s%s[%d].", prefix, KeySubframeArchives, i))
			if err != nil {
				return nil, err
			}
			a.SubframeArchives = append(a.SubframeArchives, sub)
		}
	}
	return a, nil
}

func projectResource(v bplist.Value, key string) (Resource, error) {
	dict, ok := v.(bplist.Dictionary)
	if !ok {
		return Resource{}, shapeError(key, "%s, want dictionary", v.Kind())
	}

	var r Resource
	var err error
	if r.URL, err = requireText(dict, key, KeyURL); err != nil {
		return Resource{}, err
	}
	if r.MIMEType, err = requireText(dict, key, KeyMIMEType); err != nil {
		return Resource{}, err
	}
	data, ok := dict.Lookup(KeyData)
	if !ok {
		return Resource{}, missingKey(key+"."+KeyData, "absent")
	}
	payload, ok := data.(bplist.Data)
	if !ok {
		return Resource{}, missingKey(key+"."+KeyData, "%s, want data", data.Kind())
	}
	r.Data = payload

	r.TextEncodingName = optionalText(dict, KeyTextEncodingName)
	r.FrameName = optionalText(dict, KeyFrameName)
	r.Domain, r.FileName = splitURL(r.URL)
	return r, nil
}

func requireText(dict bplist.Dictionary, prefix, key string) (string, error) {
	v, ok := dict.Lookup(key)
	if !ok {
		return "", missingKey(prefix+"."+key, "absent")
	}
	s, ok := v.(bplist.Text)
	if !ok {
		return "", missingKey(prefix+"."+key, "%s, want text", v.Kind())
	}
	return string(s), nil
}

func optionalText(dict bplist.Dictionary, key string) string {
	v, _ := dict.Lookup(key)
	s, _ := v.(bplist.Text)
	return string(s)
}

func trimKey(prefix string) string {
	if n := len(prefix); n > 0 && prefix[n-1] == '.' {
		return prefix[:n-1]
	}
	return prefix
}
