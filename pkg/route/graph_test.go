package route

import (
	"strings"
	"testing"
)

func TestConvertRoutesAssignsTreeIDs(t *testing.T) {
	routes := []Route{
		{Path: "/", Children: []Route{
			{Index: true},
			{Path: "users", Children: []Route{
				{Path: ":id"},
			}},
		}},
		{Path: "/about"},
	}

	dataRoutes, err := ConvertRoutesToDataRoutes(routes)
	if err != nil {
		t.Fatalf("ConvertRoutesToDataRoutes: %v", err)
	}

	tests := []struct {
		id   string
		want bool
	}{
		{"0", true},
		{"0-0", true},
		{"0-1", true},
		{"0-1-0", true},
		{"1", true},
		{"2", false},
	}
	for _, tt := range tests {
		got := FindRouteByID(dataRoutes, tt.id) != nil
		if got != tt.want {
			t.Errorf("FindRouteByID(%q) found = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestConvertRoutesExplicitIDWins(t *testing.T) {
	routes := []Route{
		{ID: "root", Path: "/", Children: []Route{
			{Path: "users"},
		}},
	}

	dataRoutes, err := ConvertRoutesToDataRoutes(routes)
	if err != nil {
		t.Fatalf("ConvertRoutesToDataRoutes: %v", err)
	}
	if FindRouteByID(dataRoutes, "root") == nil {
		t.Error("explicit id not preserved")
	}
	// The child still gets a positional id under its own index path.
	if FindRouteByID(dataRoutes, "0-0") == nil {
		t.Error("child positional id missing")
	}
}

func TestConvertRoutesDuplicateID(t *testing.T) {
	routes := []Route{
		{ID: "dup", Path: "/a"},
		{ID: "dup", Path: "/b"},
	}

	if _, err := ConvertRoutesToDataRoutes(routes); err == nil {
		t.Fatal("expected duplicate id error")
	} else if !strings.Contains(err.Error(), "dup") {
		t.Errorf("error %q should name the duplicate id", err)
	}
}

func TestConvertRoutesIndexWithChildren(t *testing.T) {
	routes := []Route{
		{Index: true, Children: []Route{{Path: "child"}}},
	}

	if _, err := ConvertRoutesToDataRoutes(routes); err == nil {
		t.Fatal("expected index-with-children error")
	}
}

func TestConvertRoutesAbsoluteChildPath(t *testing.T) {
	valid := []Route{
		{Path: "/app", Children: []Route{
			{Path: "/app/users"},
		}},
	}
	if _, err := ConvertRoutesToDataRoutes(valid); err != nil {
		t.Fatalf("absolute child extending parent should convert: %v", err)
	}

	invalid := []Route{
		{Path: "/app", Children: []Route{
			{Path: "/elsewhere"},
		}},
	}
	if _, err := ConvertRoutesToDataRoutes(invalid); err == nil {
		t.Fatal("expected absolute path error")
	}
}
