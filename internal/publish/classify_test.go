package publish

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_KnownExtensions(t *testing.T) {
	cases := map[string]string{
		"lib.ua":            "text/uiua",
		"docs/README.md":    "text/markdown",
		"notes.TXT":         "text/plain",
		"boo.json":          "application/json",
		"config.yaml":       "application/yaml",
		"config.yml":        "application/yaml",
		"Cargo.toml":        "application/toml",
		"site/index.html":   "text/html",
		"assets/logo.svg":   "image/svg+xml",
		"assets/shot.png":   "image/png",
		"assets/photo.jpeg": "image/jpeg",
	}
	for filePath, want := range cases {
		c := Classify(filePath, []byte("content"))
		require.Equal(t, want, c.MimeType, "path %s", filePath)
	}
}

// Unknown extensions fall back to content sniffing, with any charset
// parameter stripped from the detected type.
func TestClassify_SniffsUnknownExtensions(t *testing.T) {
	c := Classify("LICENSE", []byte("Copyright (c) 2026"))
	require.Equal(t, "text/plain", c.MimeType)

	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 16)...)
	c = Classify("thumbnail", png)
	require.Equal(t, "image/png", c.MimeType)
}

func TestClassify_PreviewableRequiresTextUnderLimit(t *testing.T) {
	c := Classify("lib.ua", []byte(strings.Repeat("+", 500)))
	require.True(t, c.IsPreviewable)

	// At exactly the limit the file still previews.
	c = Classify("big.txt", bytes.Repeat([]byte{'x'}, MaxPreviewSize))
	require.True(t, c.IsPreviewable)

	c = Classify("huge.txt", bytes.Repeat([]byte{'x'}, MaxPreviewSize+1))
	require.False(t, c.IsPreviewable)
}

func TestClassify_BinaryContentIsNotPreviewable(t *testing.T) {
	c := Classify("data.bin", []byte{0x00, 0xff, 0xfe, 0x01, 0x80, 0x81, 0x00, 0xc3, 0x28, 0x00})
	require.False(t, c.IsPreviewable)
}

func TestClassify_EmptyFileIsPreviewable(t *testing.T) {
	c := Classify("empty.ua", nil)
	require.True(t, c.IsPreviewable)
}
