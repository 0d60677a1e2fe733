package storage

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

// resolve validates rel and joins it against root, refusing absolute paths,
// non-UTF8 paths, and paths that would escape root via "..".
func resolve(root, rel, op string) (string, error) {
	if !utf8.ValidString(rel) {
		return "", &cberrors.PathError{Path: rel, Operation: op, Reason: "not valid UTF-8"}
	}
	if filepath.IsAbs(rel) {
		return "", &cberrors.PathError{Path: rel, Operation: op, Reason: "must be relative to the storage root"}
	}

	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", &cberrors.PathError{Path: rel, Operation: op, Reason: "escapes storage root"}
	}

	return filepath.Join(root, cleaned), nil
}

// relativeTo converts an absolute path back to root-relative, using
// forward slashes regardless of host OS so artifact paths are portable.
func relativeTo(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
