package route

import (
	"errors"
	"strings"
)

// Canonicalization errors. Navigation destinations that fail these checks
// are rejected before any matching happens.
var (
	ErrBackslashInPath      = errors.New("route: path contains backslash")
	ErrNullByteInPath       = errors.New("route: path contains null byte")
	ErrInvalidPercentEscape = errors.New("route: invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("route: path escapes root")
)

// CanonicalizePath normalizes a pathname for navigation:
//   - ensures a leading slash
//   - collapses repeated slashes
//   - drops "." segments and resolves ".." segments
//   - strips the trailing slash except for root
//
// Pathnames carrying a backslash, a NUL byte (literal or %00), a
// malformed percent escape, or a ".." that would climb above root are
// rejected. Relative ".." against the current location is resolved by
// ResolveTo before this runs, so rejection only hits raw escaping input.
func CanonicalizePath(pathname string) (string, error) {
	if pathname == "" {
		return "/", nil
	}
	if strings.Contains(pathname, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(pathname, "\x00") || strings.Contains(strings.ToUpper(pathname), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(pathname, "%") {
		if err := validatePercentEscapes(pathname); err != nil {
			return "", err
		}
	}

	var segments []string
	for _, seg := range strings.Split(pathname, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	return "/" + strings.Join(segments, "/"), nil
}

func validatePercentEscapes(pathname string) error {
	for i := 0; i < len(pathname); {
		if pathname[i] != '%' {
			i++
			continue
		}
		if i+2 >= len(pathname) {
			return ErrInvalidPercentEscape
		}
		_, hi := unhex(pathname[i+1])
		_, lo := unhex(pathname[i+2])
		if !hi || !lo {
			return ErrInvalidPercentEscape
		}
		i += 3
	}
	return nil
}
