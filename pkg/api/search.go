package api

import (
	"github.com/brypt-io/brypt-core/internal/search"
)

// SearchRoutes builds a fresh in-memory index over every currently
// registered route and returns the best matches for query.
func (s *Service) SearchRoutes(query string, limit int) ([]search.SearchResult, error) {
	idx, err := search.NewMemoryIndex()
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	for _, route := range s.Routes() {
		if err := idx.IndexRoute(route.Path, route.Description); err != nil {
			return nil, err
		}
	}
	return idx.Search(query, limit)
}
