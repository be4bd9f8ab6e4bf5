package publish

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Entry is one regular file collected from an archive, with its
// normalized slash-separated path.
type Entry struct {
	Path    string
	Content []byte
}

// ExtractEntries stream-decompresses and untars a gzip-compressed tar
// archive, collecting every regular file. Entry paths are normalized;
// entries that would escape the archive root are rejected. Returns
// ErrEmptyArchive when no regular files are found.
func ExtractEntries(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("not a gzip stream: %w", err)}
	}
	defer func() { _ = gz.Close() }()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ExtractionError{Err: err}
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		normalized, err := normalizeEntryPath(header.Name)
		if err != nil {
			return nil, &ExtractionError{Path: header.Name, Err: err}
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, &ExtractionError{Path: normalized, Err: err}
		}
		entries = append(entries, Entry{Path: normalized, Content: content})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyArchive
	}
	return entries, nil
}

// normalizeEntryPath cleans redundant "./" and ".." segments and rejects
// paths that resolve outside the archive root.
func normalizeEntryPath(name string) (string, error) {
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == "" {
		return "", errors.New("entry has no file name")
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", errors.New("entry path is absolute")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("entry path escapes the archive root")
	}
	return cleaned, nil
}
