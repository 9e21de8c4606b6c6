package route

import (
	"fmt"
	"strconv"
	"strings"
)

// ConvertRoutesToDataRoutes flattens identity over a route tree: every node
// gets a stable string id, either the explicit one or the join of its
// positional index path ("0-1-2"). Configuration problems are fatal here,
// at startup, rather than surfacing as runtime navigation errors:
//
//   - duplicate ids anywhere in the tree
//   - an index route declaring children
//   - an absolute child path that does not extend its parents' joined path
func ConvertRoutesToDataRoutes(routes []Route) ([]*DataRoute, error) {
	seen := make(map[string]struct{})
	return convertRoutes(routes, nil, "", seen)
}

func convertRoutes(routes []Route, parentIndexes []int, parentPath string, seen map[string]struct{}) ([]*DataRoute, error) {
	dataRoutes := make([]*DataRoute, 0, len(routes))
	for i := range routes {
		r := &routes[i]
		indexes := append(append([]int(nil), parentIndexes...), i)

		if r.Index && len(r.Children) > 0 {
			return nil, fmt.Errorf("route: index route cannot have children (id %q)", treeID(r.ID, indexes))
		}
		if strings.HasPrefix(r.Path, "/") && !strings.HasPrefix(r.Path, parentPath) {
			return nil, fmt.Errorf(
				"route: absolute path %q must start with the combined path of all its parent routes %q",
				r.Path, parentPath)
		}

		id := r.ID
		if id == "" {
			id = joinIndexes(indexes)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("route: duplicate route id %q", id)
		}
		seen[id] = struct{}{}

		dr := &DataRoute{
			ID:               id,
			Path:             r.Path,
			Index:            r.Index,
			CaseSensitive:    r.CaseSensitive,
			Loader:           r.Loader,
			Action:           r.Action,
			ShouldRevalidate: r.ShouldRevalidate,
			HasErrorBoundary: r.HasErrorBoundary,
			Handle:           r.Handle,
		}
		if len(r.Children) > 0 {
			childBase := joinPaths(parentPath, r.Path)
			if strings.HasPrefix(r.Path, "/") {
				childBase = r.Path
			}
			children, err := convertRoutes(r.Children, indexes, childBase, seen)
			if err != nil {
				return nil, err
			}
			dr.Children = children
		}
		dataRoutes = append(dataRoutes, dr)
	}
	return dataRoutes, nil
}

// treeID is the id a node would get, used for error messages before the id
// has been assigned.
func treeID(explicit string, indexes []int) string {
	if explicit != "" {
		return explicit
	}
	return joinIndexes(indexes)
}

func joinIndexes(indexes []int) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "-")
}

// FindRouteByID walks the tree looking for the route with the given id.
func FindRouteByID(routes []*DataRoute, id string) *DataRoute {
	for _, r := range routes {
		if r.ID == id {
			return r
		}
		if found := FindRouteByID(r.Children, id); found != nil {
			return found
		}
	}
	return nil
}
