// Package routepath normalizes navigation paths before they are
// matched against guard rules. Guard decisions are prefix-based, so a
// path that smuggles extra slashes or dot segments past the matcher
// would bypass protection; every inbound path is canonicalized first.
package routepath

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidPath covers paths that cannot be normalized safely.
	ErrInvalidPath = errors.New("invalid path")

	// ErrEscapesRoot is returned when ".." would climb above "/".
	ErrEscapesRoot = errors.New("path escapes root")
)

// Canonicalize normalizes a URL path: collapses repeated slashes,
// resolves "." and ".." segments, and strips the trailing slash
// (except for root). A query string, if present, is discarded.
//
// Backslashes, NUL bytes, malformed percent escapes, and ".." that
// would escape root are rejected. Callers treating the path as a
// privilege boundary deny on error.
func Canonicalize(input string) (string, error) {
	if input == "" {
		return "/", nil
	}

	path, _, _ := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return "", ErrInvalidPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrInvalidPath
	}
	if strings.Contains(path, "%") && !validEscapes(path) {
		return "", ErrInvalidPath
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segments := strings.Split(path, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
		case "..":
			if len(kept) == 0 {
				return "", ErrEscapesRoot
			}
			kept = kept[:len(kept)-1]
		default:
			kept = append(kept, seg)
		}
	}

	return "/" + strings.Join(kept, "/"), nil
}

// ValidateLocalRedirect checks a client-supplied redirect target, as
// carried in the login page's redirect query parameter. Only
// same-origin paths pass: full URLs and scheme-relative "//" targets
// are open redirects and are rejected. The returned path is
// canonicalized, with the query preserved.
func ValidateLocalRedirect(target string) (string, error) {
	if strings.HasPrefix(target, "//") || strings.Contains(target, "://") {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(target, "/") {
		return "", ErrInvalidPath
	}

	_, query, _ := strings.Cut(target, "?")
	path, err := Canonicalize(target)
	if err != nil {
		return "", err
	}
	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

// validEscapes reports whether every "%" in path begins a well-formed
// two-digit hex escape.
func validEscapes(path string) bool {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHex(path[i+1]) || !isHex(path[i+2]) {
			return false
		}
		i += 2
	}
	return true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
