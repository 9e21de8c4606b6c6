package wayfind_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wayfind-dev/wayfind"
	"github.com/wayfind-dev/wayfind/pkg/route"
	"github.com/wayfind-dev/wayfind/pkg/searchparams"
	"github.com/wayfind-dev/wayfind/pkg/wftest"
)

type listQuery struct {
	Category string `url:"cat"`
	Page     int    `url:"page"`
}

func TestFacadeEndToEnd(t *testing.T) {
	queryCodec := searchparams.Flat[listQuery]("")

	h := wftest.New(t).WithRoutes(
		wayfind.Route{ID: "root", Path: "/", HasErrorBoundary: true,
			Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
				return "root data", nil
			},
			Children: []wayfind.Route{
				{ID: "items", Path: "items",
					Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
						q, err := queryCodec.DecodeSearch(args.Request.URL.RawQuery)
						if err != nil {
							return nil, err
						}
						return fmt.Sprintf("%s page %d", q.Category, q.Page), nil
					}},
				{ID: "broken", Path: "broken",
					Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
						return nil, errors.New("backend down")
					}},
			}},
	).Build()

	h.ExpectLocation("/")
	h.ExpectLoaderData("root", "root data")

	h.Navigate("/items" + queryCodec.EncodeSearch(listQuery{Category: "tools", Page: 3}))
	h.ExpectLocation("/items")
	h.ExpectLoaderData("items", "tools page 3")
	h.ExpectNoErrors()

	h.Navigate("/broken")
	err := h.ExpectError("root")
	if err == nil || err.Error() != "backend down" {
		t.Errorf("boundary error = %v, want backend down", err)
	}

	// States were broadcast for each committed change.
	if len(h.States()) < 2 {
		t.Errorf("recorded %d states, want at least 2", len(h.States()))
	}
}

func TestFacadeMalformedPathRejected(t *testing.T) {
	h := wftest.New(t).WithRoutes(
		wayfind.Route{ID: "root", Path: "/"},
	).Build()

	if err := h.Router.Navigate("/a\\b"); !errors.Is(err, wayfind.ErrBackslashInPath) {
		t.Errorf("Navigate error = %v, want ErrBackslashInPath", err)
	}
	h.ExpectLocation("/")
}
