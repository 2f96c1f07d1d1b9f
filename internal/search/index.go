// Package search indexes a node's registered routes for the `routes
// search` diagnostic, using Bleve as the full-text index.
package search

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
)

// Index wraps a Bleve full-text index over a node's registered routes.
type Index struct {
	index bleve.Index
	path  string
}

// RouteDocument is the searchable unit: one registered route's path and
// its free-text description.
type RouteDocument struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// NewIndex creates or opens an on-disk route index under dataDir.
func NewIndex(dataDir string) (*Index, error) {
	indexPath := filepath.Join(dataDir, "routes.bleve")

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		mapping := bleve.NewIndexMapping()

		docMapping := bleve.NewDocumentMapping()

		pathField := bleve.NewTextFieldMapping()
		pathField.Analyzer = "keyword"
		docMapping.AddFieldMappingsAt("path", pathField)

		descField := bleve.NewTextFieldMapping()
		descField.Analyzer = "standard"
		docMapping.AddFieldMappingsAt("description", descField)

		mapping.AddDocumentMapping("route", docMapping)

		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create route index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open route index: %w", err)
	}

	return &Index{index: idx, path: indexPath}, nil
}

// NewMemoryIndex builds an in-process index, rebuilt from the router's
// current registrations on every `routes search` invocation -- a node's
// route table is small and changes rarely enough that persisting it to
// disk between CLI invocations buys nothing.
func NewMemoryIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &Index{index: idx}, nil
}

// IndexRoute adds or updates a route document in the index.
func (i *Index) IndexRoute(path, description string) error {
	return i.index.Index(path, RouteDocument{Path: path, Description: description})
}

// DeleteRoute removes a route document from the index.
func (i *Index) DeleteRoute(path string) error {
	return i.index.Delete(path)
}

// SearchResult is one route search hit.
type SearchResult struct {
	Path  string
	Score float64
}

// Search runs a fuzzy match over route paths and descriptions, returning
// at most limit hits ordered by relevance (0 defaults to 50).
func (i *Index) Search(query string, limit int) ([]SearchResult, error) {
	pathQuery := bleve.NewMatchQuery(query)
	pathQuery.SetField("path")
	descQuery := bleve.NewMatchQuery(query)
	descQuery.SetField("description")
	q := bleve.NewDisjunctionQuery(pathQuery, descQuery)

	searchReq := bleve.NewSearchRequest(q)
	searchReq.Size = limit
	if searchReq.Size <= 0 {
		searchReq.Size = 50
	}

	searchRes, err := i.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("route search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		results = append(results, SearchResult{Path: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// Delete closes the index and removes it from disk, if it was opened
// on-disk via NewIndex.
func (i *Index) Delete() error {
	i.index.Close()
	if i.path != "" {
		return os.RemoveAll(i.path)
	}
	return nil
}
