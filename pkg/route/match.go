package route

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wayfind-dev/wayfind/pkg/history"
)

// Branch scoring constants. A branch's score is its segment count plus the
// per-segment values below; wildcards penalize and index routes get a small
// boost so they outrank their pathless parents.
const (
	dynamicSegmentValue = 3
	indexRouteValue     = 2
	emptySegmentValue   = 1
	staticSegmentValue  = 10
	splatPenalty        = -2
)

var paramSegmentRe = regexp.MustCompile(`^:\w+$`)

// routeMeta records one route's contribution to a flattened branch.
type routeMeta struct {
	relativePath  string
	caseSensitive bool
	childrenIndex int
	route         *DataRoute
}

// branch is one fully flattened root-to-leaf candidate path.
type branch struct {
	path       string
	score      int
	routesMeta []routeMeta
}

// MatchRoutes resolves a location to an ordered match chain (root to leaf),
// or nil when nothing matches or the basename does not apply.
func MatchRoutes(routes []*DataRoute, location history.Path, basename string) []*Match {
	return MatchRoutesWithLogger(routes, location, basename, zap.NewNop())
}

// MatchRoutesWithLogger is MatchRoutes with a logger for non-fatal warnings
// (malformed percent-encoding falls back to raw values).
func MatchRoutesWithLogger(routes []*DataRoute, location history.Path, basename string, log *zap.Logger) []*Match {
	pathname := location.Pathname
	if pathname == "" {
		pathname = "/"
	}
	stripped, ok := StripBasename(pathname, basename)
	if !ok {
		return nil
	}

	branches := flattenRoutes(routes, nil, nil, "")
	rankRouteBranches(branches)

	decoded := decodePath(stripped, log)
	for i := range branches {
		if matches := matchRouteBranch(&branches[i], decoded, log); matches != nil {
			return matches
		}
	}
	return nil
}

// flattenRoutes emits branches depth-first, children before the parent's own
// branch, so deeper (more specific) candidates are present when ranking.
// Pathless layout routes contribute to descendants' paths but produce no
// standalone branch.
func flattenRoutes(routes []*DataRoute, branches []branch, parentsMeta []routeMeta, parentPath string) []branch {
	for index, r := range routes {
		meta := routeMeta{
			relativePath:  r.Path,
			caseSensitive: r.CaseSensitive,
			childrenIndex: index,
			route:         r,
		}

		if strings.HasPrefix(meta.relativePath, "/") {
			if !strings.HasPrefix(meta.relativePath, parentPath) {
				// Caught by ConvertRoutesToDataRoutes for converted
				// trees; a hand-built tree violating it is a
				// programmer error.
				panic(fmt.Sprintf(
					"route: absolute path %q must start with the combined path of all its parent routes %q",
					meta.relativePath, parentPath))
			}
			meta.relativePath = meta.relativePath[len(parentPath):]
		}

		path := joinPaths(parentPath, meta.relativePath)
		routesMeta := append(append([]routeMeta(nil), parentsMeta...), meta)

		if len(r.Children) > 0 {
			branches = flattenRoutes(r.Children, branches, routesMeta, path)
		}

		// Routes without a path or index flag cannot match on their own.
		if r.Path == "" && !r.Index {
			continue
		}
		branches = append(branches, branch{
			path:       path,
			score:      computeScore(path, r.Index),
			routesMeta: routesMeta,
		})
	}
	return branches
}

func isSplat(segment string) bool { return segment == "*" }

// Score reports the ranking weight of a path pattern. Higher scores win
// when several branches match the same pathname.
func Score(path string, index bool) int { return computeScore(path, index) }

func computeScore(path string, index bool) int {
	segments := strings.Split(path, "/")
	score := len(segments)
	for _, segment := range segments {
		if isSplat(segment) {
			score += splatPenalty
			break
		}
	}
	if index {
		score += indexRouteValue
	}
	for _, segment := range segments {
		if isSplat(segment) {
			continue
		}
		switch {
		case paramSegmentRe.MatchString(segment):
			score += dynamicSegmentValue
		case segment == "":
			score += emptySegmentValue
		default:
			score += staticSegmentValue
		}
	}
	return score
}

// rankRouteBranches sorts branches by descending score. Equal-score sibling
// branches fall back to their position among the parent's children; equal
// scores between non-siblings keep input order (stable sort).
func rankRouteBranches(branches []branch) {
	sort.SliceStable(branches, func(i, j int) bool {
		a, b := &branches[i], &branches[j]
		if a.score != b.score {
			return a.score > b.score
		}
		return compareIndexes(a.routesMeta, b.routesMeta) < 0
	})
}

func compareIndexes(a, b []routeMeta) int {
	if len(a) != len(b) {
		return 0
	}
	for i := 0; i < len(a)-1; i++ {
		if a[i].childrenIndex != b[i].childrenIndex {
			// Not siblings; equal-score order is unspecified.
			return 0
		}
	}
	return a[len(a)-1].childrenIndex - b[len(b)-1].childrenIndex
}

// matchRouteBranch sequentially matches every ancestor segment of a branch
// against the remaining unmatched pathname. Any segment failing aborts the
// whole branch.
func matchRouteBranch(b *branch, pathname string, log *zap.Logger) []*Match {
	matchedParams := make(Params)
	matchedPathname := "/"
	matches := make([]*Match, 0, len(b.routesMeta))

	for i := range b.routesMeta {
		meta := &b.routesMeta[i]
		end := i == len(b.routesMeta)-1
		remaining := pathname
		if matchedPathname != "/" {
			remaining = pathname[len(matchedPathname):]
			if remaining == "" {
				// Ancestors consumed the whole pathname; index and
				// empty-path children still need a root to match.
				remaining = "/"
			}
		}

		match := matchPath(PathPattern{
			Path:          meta.relativePath,
			CaseSensitive: meta.caseSensitive,
			End:           end,
		}, remaining, log)
		if match == nil {
			return nil
		}

		for name, value := range match.Params {
			matchedParams[name] = value
		}
		params := make(Params, len(matchedParams))
		for name, value := range matchedParams {
			params[name] = value
		}

		matches = append(matches, &Match{
			Params:       params,
			Pathname:     joinPaths(matchedPathname, match.Pathname),
			PathnameBase: normalizePathname(joinPaths(matchedPathname, match.PathnameBase)),
			Route:        meta.route,
		})

		if match.PathnameBase != "/" {
			matchedPathname = joinPaths(matchedPathname, match.PathnameBase)
		}
	}
	return matches
}
