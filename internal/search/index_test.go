package search

import "testing"

func TestIndexSearchMatchesPathAndDescription(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	defer idx.Close()

	routes := []RouteDocument{
		{Path: "/peers/ping", Description: "liveness probe for a single peer"},
		{Path: "/cluster/broadcast", Description: "fan a message out to every active peer"},
		{Path: "/echo", Description: "returns the request payload unchanged"},
	}
	for _, r := range routes {
		if err := idx.IndexRoute(r.Path, r.Description); err != nil {
			t.Fatalf("IndexRoute(%s): %v", r.Path, err)
		}
	}

	results, err := idx.Search("peer", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits for %q, got %d: %+v", "peer", len(results), results)
	}

	results, err = idx.Search("echo", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "/echo" {
		t.Fatalf("expected exactly /echo to match %q, got %+v", "echo", results)
	}
}

func TestIndexDeleteRouteRemovesHit(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	defer idx.Close()

	if err := idx.IndexRoute("/status", "reports node status"); err != nil {
		t.Fatalf("IndexRoute: %v", err)
	}
	if err := idx.DeleteRoute("/status"); err != nil {
		t.Fatalf("DeleteRoute: %v", err)
	}

	results, err := idx.Search("status", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no hits after delete, got %+v", results)
	}
}
