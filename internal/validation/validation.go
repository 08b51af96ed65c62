// Package validation normalizes and checks the /-separated paths used
// throughout the store.
package validation

import (
	"strings"

	"vellum/internal/errors"
)

// Split normalizes path and returns its segments. Leading and trailing
// slashes are stripped before validation. The empty path (or one that is
// all slashes) is rejected; callers that accept the root handle that
// case before calling Split.
func Split(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, &errors.PathError{Path: path, Reason: "empty path"}
	}
	if strings.ContainsRune(trimmed, 0) {
		return nil, &errors.PathError{Path: path, Reason: "NUL byte in path"}
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		switch seg {
		case "":
			return nil, &errors.PathError{Path: path, Reason: "empty segment"}
		case ".", "..":
			return nil, &errors.PathError{Path: path, Reason: "relative segment " + seg}
		}
	}
	return segments, nil
}

// Clean returns the canonical form of path: segments joined with single
// slashes, no leading or trailing slash.
func Clean(path string) (string, error) {
	segments, err := Split(path)
	if err != nil {
		return "", err
	}
	return strings.Join(segments, "/"), nil
}

// IsRoot reports whether path names the store root.
func IsRoot(path string) bool {
	return strings.Trim(path, "/") == ""
}
