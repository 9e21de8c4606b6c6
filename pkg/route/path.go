package route

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/wayfind-dev/wayfind/pkg/history"
)

// PathPattern describes a single pattern for MatchPath.
type PathPattern struct {
	// Path is the pattern to match, e.g. "/users/:id" or "/files/*".
	Path string

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool

	// End requires the pattern to consume the entire pathname (trailing
	// slashes excepted). When false the match must end at a segment
	// boundary.
	End bool
}

// PathMatch is the result of matching a single pattern against a pathname.
type PathMatch struct {
	Params       Params
	Pathname     string
	PathnameBase string
	Pattern      PathPattern
}

var (
	paramNameRe     = regexp.MustCompile(`/:(\w+)`)
	regexpSpecialRe = regexp.MustCompile(`[\\.*+^${}|()[\]]`)
	trailingSlashRe = regexp.MustCompile(`(.)/+$`)
	multiSlashRe    = regexp.MustCompile(`//+`)
	leadingSlashRe  = regexp.MustCompile(`^/*`)
	trailingStarRe  = regexp.MustCompile(`/*\*?$`)
	allTrailingRe   = regexp.MustCompile(`/+$`)
)

// compiledPath is a pattern prepared for repeated matching.
type compiledPath struct {
	re         *regexp.Regexp
	paramNames []string

	// boundary requires the match to be followed by "/" or end-of-string
	// (the End=false case; RE2 has no lookahead, so it is checked after
	// the fact).
	boundary bool
}

// compilePath translates a pattern into a matcher plus captured parameter
// names, in order of appearance. A trailing "/*" captures the remainder
// under the name "*".
func compilePath(path string, caseSensitive, end bool) compiledPath {
	var paramNames []string

	source := trailingStarRe.ReplaceAllString(path, "")
	source = leadingSlashRe.ReplaceAllString(source, "/")
	source = regexpSpecialRe.ReplaceAllString(source, `\$0`)
	source = paramNameRe.ReplaceAllStringFunc(source, func(m string) string {
		paramNames = append(paramNames, m[2:]) // strip "/:"
		return "/([^/]+)"
	})
	source = "^" + source

	boundary := false
	switch {
	case strings.HasSuffix(path, "*"):
		paramNames = append(paramNames, "*")
		if path == "*" || path == "/*" {
			source += "(.*)$"
		} else {
			source += "(?:/(.+)|/*)$"
		}
	case end:
		source += "/*$"
	case path != "" && path != "/":
		boundary = true
	}

	if !caseSensitive {
		source = "(?i)" + source
	}
	return compiledPath{re: regexp.MustCompile(source), paramNames: paramNames, boundary: boundary}
}

// MatchPath matches a single pattern against a pathname, returning captured
// params and the matched pathname portions, or nil on no match.
func MatchPath(pattern PathPattern, pathname string) *PathMatch {
	return matchPath(pattern, pathname, zap.NewNop())
}

func matchPath(pattern PathPattern, pathname string, log *zap.Logger) *PathMatch {
	compiled := compilePath(pattern.Path, pattern.CaseSensitive, pattern.End)

	m := compiled.re.FindStringSubmatch(pathname)
	if m == nil || !strings.HasPrefix(pathname, m[0]) {
		return nil
	}
	matchedPathname := m[0]
	if compiled.boundary {
		// The match must stop at a segment boundary.
		if len(matchedPathname) < len(pathname) && pathname[len(matchedPathname)] != '/' {
			return nil
		}
	}

	pathnameBase := trailingSlashRe.ReplaceAllString(matchedPathname, "$1")
	params := make(Params, len(compiled.paramNames))
	for i, name := range compiled.paramNames {
		value := ""
		if i+1 < len(m) {
			value = m[i+1]
		}
		if name == "*" {
			// The wildcard capture is excluded from the pathname base.
			base := matchedPathname[:len(matchedPathname)-len(value)]
			pathnameBase = allTrailingRe.ReplaceAllString(base, "")
		}
		params[name] = decodeParam(value, name, log)
	}

	return &PathMatch{
		Params:       params,
		Pathname:     matchedPathname,
		PathnameBase: pathnameBase,
		Pattern:      pattern,
	}
}

// GeneratePath interpolates params into a pattern. Every named segment must
// have a value; the wildcard is optional and collapses cleanly when empty.
func GeneratePath(path string, params Params) (string, error) {
	// A dangling "*" that is not its own segment behaves as "/*".
	if strings.HasSuffix(path, "*") && !strings.HasSuffix(path, "/*") && path != "*" {
		path = strings.TrimSuffix(path, "*") + "/*"
	}

	// Substitution keys off "/:name", so a relative pattern gets a
	// temporary leading slash; relative patterns yield relative output.
	relative := !strings.HasPrefix(path, "/")
	if relative {
		path = "/" + path
	}

	var missing []string
	result := paramNameRe.ReplaceAllStringFunc(path, func(m string) string {
		name := m[2:]
		value, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return "/" + value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("route: missing params %v for path %q", missing, path)
	}

	if strings.HasSuffix(result, "*") {
		star := params["*"]
		result = strings.TrimSuffix(result, "*")
		if star == "" {
			result = trailingSlashRe.ReplaceAllString(result, "$1")
			if result == "" {
				result = "/"
			}
		} else {
			result = joinPaths(result, star)
		}
	}
	if relative {
		result = strings.TrimPrefix(result, "/")
	}
	return result, nil
}

// ResolvePath resolves a possibly-relative destination against a pathname.
func ResolvePath(to history.Path, fromPathname string) history.Path {
	if fromPathname == "" {
		fromPathname = "/"
	}

	var pathname string
	switch {
	case to.Pathname == "":
		pathname = fromPathname
	case strings.HasPrefix(to.Pathname, "/"):
		pathname = to.Pathname
	default:
		pathname = resolvePathname(to.Pathname, fromPathname)
	}

	return history.Path{
		Pathname: pathname,
		Search:   NormalizeSearch(to.Search),
		Hash:     NormalizeHash(to.Hash),
	}
}

func resolvePathname(relativePath, fromPathname string) string {
	segments := strings.Split(allTrailingRe.ReplaceAllString(fromPathname, ""), "/")
	for _, segment := range strings.Split(relativePath, "/") {
		switch segment {
		case "..":
			// Keep the root "" segment.
			if len(segments) > 1 {
				segments = segments[:len(segments)-1]
			}
		case ".":
		default:
			segments = append(segments, segment)
		}
	}
	if len(segments) > 1 {
		return strings.Join(segments, "/")
	}
	return "/"
}

// ResolveTo resolves a destination the way a rendered route would: ".."
// climbs the pathnames contributed by active path-owning matches, and an
// empty destination points back at the current location.
func ResolveTo(to history.Path, routePathnames []string, locationPathname string) history.Path {
	toPathname := to.Pathname
	isEmptyPath := to.Pathname == "" && to.Search == "" && to.Hash == ""

	var from string
	if toPathname == "" {
		from = locationPathname
	} else {
		routePathnameIndex := len(routePathnames) - 1
		if strings.HasPrefix(toPathname, "..") {
			segments := strings.Split(toPathname, "/")
			for len(segments) > 0 && segments[0] == ".." {
				segments = segments[1:]
				routePathnameIndex--
			}
			to.Pathname = strings.Join(segments, "/")
		}
		if routePathnameIndex >= 0 {
			from = routePathnames[routePathnameIndex]
		} else {
			from = "/"
		}
	}

	path := ResolvePath(to, from)

	// Preserve an explicit trailing slash, and the current one when
	// resolving to ".".
	hasExplicitTrailingSlash := toPathname != "/" && strings.HasSuffix(toPathname, "/")
	hasCurrentTrailingSlash := (isEmptyPath || toPathname == ".") && strings.HasSuffix(locationPathname, "/")
	if !strings.HasSuffix(path.Pathname, "/") && (hasExplicitTrailingSlash || hasCurrentTrailingSlash) {
		path.Pathname += "/"
	}
	return path
}

// StripBasename removes basename from the front of pathname. ok is false
// when the basename does not apply.
func StripBasename(pathname, basename string) (string, bool) {
	if basename == "/" || basename == "" {
		return pathname, true
	}
	if !strings.HasPrefix(strings.ToLower(pathname), strings.ToLower(basename)) {
		return "", false
	}
	startIndex := len(basename)
	if strings.HasSuffix(basename, "/") {
		startIndex--
	}
	if startIndex < len(pathname) && pathname[startIndex] != '/' {
		// /base2 does not start with /base
		return "", false
	}
	rest := pathname[startIndex:]
	if rest == "" {
		rest = "/"
	}
	return rest, true
}

// JoinPaths joins path fragments, collapsing duplicate slashes.
func JoinPaths(paths ...string) string { return joinPaths(paths...) }

func joinPaths(paths ...string) string {
	return multiSlashRe.ReplaceAllString(strings.Join(paths, "/"), "/")
}

func normalizePathname(pathname string) string {
	pathname = allTrailingRe.ReplaceAllString(pathname, "")
	return leadingSlashRe.ReplaceAllString(pathname, "/")
}

// NormalizeSearch canonicalizes a search string to "?..."-or-empty form.
func NormalizeSearch(search string) string {
	if search == "" || search == "?" {
		return ""
	}
	if strings.HasPrefix(search, "?") {
		return search
	}
	return "?" + search
}

// NormalizeHash canonicalizes a hash string to "#..."-or-empty form.
func NormalizeHash(hash string) string {
	if hash == "" || hash == "#" {
		return ""
	}
	if strings.HasPrefix(hash, "#") {
		return hash
	}
	return "#" + hash
}

// reservedURIChars are left encoded when decoding a full pathname, so that
// decoding never changes segmentation.
const reservedURIChars = "#$&+,/:;=?@%"

// decodePath percent-decodes a pathname, leaving reserved characters in
// their encoded form. On malformed input the raw pathname is returned and a
// warning logged.
func decodePath(pathname string, log *zap.Logger) string {
	var sb strings.Builder
	sb.Grow(len(pathname))
	for i := 0; i < len(pathname); i++ {
		c := pathname[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(pathname) {
			log.Warn("malformed URL in pathname, using raw value", zap.String("pathname", pathname))
			return pathname
		}
		hi, ok1 := unhex(pathname[i+1])
		lo, ok2 := unhex(pathname[i+2])
		if !ok1 || !ok2 {
			log.Warn("malformed URL in pathname, using raw value", zap.String("pathname", pathname))
			return pathname
		}
		decoded := hi<<4 | lo
		if strings.IndexByte(reservedURIChars, decoded) >= 0 {
			sb.WriteString(pathname[i : i+3])
		} else {
			sb.WriteByte(decoded)
		}
		i += 2
	}
	return sb.String()
}

// decodeParam percent-decodes a captured parameter value, falling back to
// the raw value with a warning on malformed input.
func decodeParam(value, name string, log *zap.Logger) string {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		log.Warn("malformed param value, using raw value",
			zap.String("param", name), zap.String("value", value))
		return value
	}
	return decoded
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
