package webarchive_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izo/unwebarchiver/internal/bplist"
	"github.com/izo/unwebarchiver/internal/bplist/bplisttest"
	"github.com/izo/unwebarchiver/internal/webarchive"
	"github.com/izo/unwebarchiver/internal/webarchive/webarchivetest"
)

func TestDecodeMainResourceOnly(t *testing.T) {
	buf := webarchivetest.Page("https://example.com/index.html", "text/html", []byte("hello world"))

	a, err := webarchive.Decode(buf)
	require.NoError(t, err)

	main := a.MainResource
	assert.Equal(t, "https://example.com/index.html", main.URL)
	assert.Equal(t, "text/html", main.MIMEType)
	assert.Equal(t, "example.com", main.Domain)
	assert.Equal(t, "index.html", main.FileName)
	assert.Equal(t, 11, main.Size())
	assert.Empty(t, a.SubResources)
	assert.NotNil(t, a.SubResources)
}

func TestDecodeSubresources(t *testing.T) {
	in := &webarchive.WebArchive{
		MainResource: webarchive.Resource{
			URL:              "https://example.com/blog/",
			MIMEType:         "text/html",
			Data:             []byte("<p>hi</p>"),
			TextEncodingName: "UTF-8",
		},
		SubResources: []webarchive.Resource{
			{URL: "https://cdn.example.com:8443/css/site.css?v=2", MIMEType: "text/css", Data: []byte("body{}")},
			{URL: "data:image/png;base64,iVBORw0KGgo=", MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			{URL: "https://example.com", MIMEType: "text/plain", Data: nil},
		},
	}

	a, err := webarchive.Decode(webarchivetest.Encode(in))
	require.NoError(t, err)

	assert.Equal(t, "example.com", a.MainResource.Domain)
	assert.Equal(t, "blog", a.MainResource.FileName)
	assert.Equal(t, "UTF-8", a.MainResource.TextEncodingName)

	require.Len(t, a.SubResources, 3)
	css, data, bare := a.SubResources[0], a.SubResources[1], a.SubResources[2]

	assert.Equal(t, "cdn.example.com:8443", css.Domain)
	assert.Equal(t, "site.css", css.FileName)
	assert.Equal(t, []byte("body{}"), css.Data)

	assert.Equal(t, webarchive.DataURLDomain, data.Domain)
	assert.Equal(t, "/", data.FileName)
	assert.True(t, data.IsDataURL())

	assert.Equal(t, "/", bare.FileName)
	assert.Equal(t, 0, bare.Size())

	assert.Len(t, a.Resources(), 4)
	assert.Equal(t, 9+6+4, a.TotalBytes())
}

func TestDecodeSubframeArchives(t *testing.T) {
	frame := &webarchive.WebArchive{
		MainResource: webarchive.Resource{URL: "https://ads.example.net/frame.html", MIMEType: "text/html", Data: []byte("f"), FrameName: "ad"},
		SubResources: []webarchive.Resource{},
	}
	in := &webarchive.WebArchive{
		MainResource:     webarchive.Resource{URL: "https://example.com/", MIMEType: "text/html", Data: []byte("m")},
		SubframeArchives: []*webarchive.WebArchive{frame},
	}

	a, err := webarchive.Decode(webarchivetest.Encode(in))
	require.NoError(t, err)
	require.Len(t, a.SubframeArchives, 1)
	sub := a.SubframeArchives[0]
	assert.Equal(t, "ads.example.net", sub.MainResource.Domain)
	assert.Equal(t, "ad", sub.MainResource.FrameName)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "0 B", webarchive.Resource{}.HumanSize())
	assert.Equal(t, "12 KiB", webarchive.Resource{Data: make([]byte, 12*1024)}.HumanSize())
}

func TestProjectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *bplisttest.Builder) uint64
		want    error
		wantKey string
	}{
		{
			name:    "root is an array",
			build:   func(b *bplisttest.Builder) uint64 { return b.Array() },
			want:    webarchive.ErrUnsupportedTopLevelShape,
			wantKey: "",
		},
		{
			name: "no main resource",
			build: func(b *bplisttest.Builder) uint64 {
				return b.StringDict([]string{"Other"}, []uint64{b.Int(1)})
			},
			want:    webarchive.ErrMissingRequiredKey,
			wantKey: "WebMainResource",
		},
		{
			name: "main resource without data",
			build: func(b *bplisttest.Builder) uint64 {
				res := b.StringDict(
					[]string{"WebResourceURL", "WebResourceMIMEType"},
					[]uint64{b.String("https://example.com/"), b.String("text/html")},
				)
				return b.StringDict([]string{"WebMainResource"}, []uint64{res})
			},
			want:    webarchive.ErrMissingRequiredKey,
			wantKey: "WebMainResource.WebResourceData",
		},
		{
			name: "url is not text",
			build: func(b *bplisttest.Builder) uint64 {
				res := b.StringDict(
					[]string{"WebResourceURL", "WebResourceMIMEType", "WebResourceData"},
					[]uint64{b.Int(3), b.String("text/html"), b.Data(nil)},
				)
				return b.StringDict([]string{"WebMainResource"}, []uint64{res})
			},
			want:    webarchive.ErrMissingRequiredKey,
			wantKey: "WebMainResource.WebResourceURL",
		},
		{
			name: "subresource without mime type",
			build: func(b *bplisttest.Builder) uint64 {
				keys := []string{"WebResourceURL", "WebResourceMIMEType", "WebResourceData"}
				main := b.StringDict(keys, []uint64{b.String("https://example.com/"), b.String("text/html"), b.Data(nil)})
				good := b.StringDict(keys, []uint64{b.String("https://example.com/a.js"), b.String("text/javascript"), b.Data(nil)})
				bad := b.StringDict(keys[:1], []uint64{b.String("https://example.com/b.js")})
				return b.StringDict(
					[]string{"WebMainResource", "WebSubresources"},
					[]uint64{main, b.Array(good, bad)},
				)
			},
			want:    webarchive.ErrMissingRequiredKey,
			wantKey: "WebSubresources[1].WebResourceMIMEType",
		},
		{
			name: "subresources is not an array",
			build: func(b *bplisttest.Builder) uint64 {
				keys := []string{"WebResourceURL", "WebResourceMIMEType", "WebResourceData"}
				main := b.StringDict(keys, []uint64{b.String("https://example.com/"), b.String("text/html"), b.Data(nil)})
				return b.StringDict([]string{"WebMainResource", "WebSubresources"}, []uint64{main, b.String("nope")})
			},
			want:    webarchive.ErrUnsupportedTopLevelShape,
			wantKey: "WebSubresources",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bplisttest.New()
			_, err := webarchive.Decode(b.Bytes(tt.build(b)))
			require.ErrorIs(t, err, tt.want)

			var pe *webarchive.ProjectionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKey, pe.Key)

			var de *bplist.DecodeError
			assert.False(t, errors.As(err, &de), "projection failures are not decode failures")
		})
	}
}

func TestDecodeErrorsPassThrough(t *testing.T) {
	_, err := webarchive.Decode([]byte("bplist00"))
	require.ErrorIs(t, err, bplist.ErrTruncatedTrailer)

	var de *bplist.DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestFromValue(t *testing.T) {
	root := bplist.Dictionary{
		{Key: bplist.Text("WebMainResource"), Value: bplist.Dictionary{
			{Key: bplist.Text("WebResourceURL"), Value: bplist.Text("file:///Users/me/page.html")},
			{Key: bplist.Text("WebResourceMIMEType"), Value: bplist.Text("text/html")},
			{Key: bplist.Text("WebResourceData"), Value: bplist.Data("x")},
		}},
	}

	a, err := webarchive.FromValue(root)
	require.NoError(t, err)
	assert.Equal(t, webarchive.DataURLDomain, a.MainResource.Domain)
	assert.Equal(t, "page.html", a.MainResource.FileName)
}
