package publish

import (
	"net/http"
	"path"
	"strings"
	"unicode/utf8"
)

// MaxPreviewSize is the largest file, in bytes, that can be stored as an
// inline preview.
const MaxPreviewSize = 1 << 20

// mimeByExtension resolves the common source and documentation types
// found in package archives without content sniffing.
var mimeByExtension = map[string]string{
	".ua":   "text/uiua",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Classification is the result of classifying one archive entry.
type Classification struct {
	MimeType      string
	IsPreviewable bool
}

// Classify determines an entry's mime type and whether it can be rendered
// inline. A file is previewable when it is at most 1 MiB and its content
// is valid UTF-8.
func Classify(filePath string, content []byte) Classification {
	ext := strings.ToLower(path.Ext(filePath))
	mimeType, ok := mimeByExtension[ext]
	if !ok {
		mimeType = detectContentType(content)
	}

	return Classification{
		MimeType:      mimeType,
		IsPreviewable: len(content) <= MaxPreviewSize && utf8.Valid(content),
	}
}

func detectContentType(content []byte) string {
	detected := http.DetectContentType(content)
	// DetectContentType appends charset parameters for text types; the
	// stored mime type is the bare media type.
	if mediaType, _, found := strings.Cut(detected, ";"); found {
		return strings.TrimSpace(mediaType)
	}
	return detected
}
