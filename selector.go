package esmap

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
)

// DocumentSelector holds the parts of a search that select documents
// rather than match them: page size, offset, sort and source filtering.
type DocumentSelector struct {
	inclusions []string
	exclusions []string
	offset     int
	pageSize   int
	sort       []types.SortCombinations
}

const (
	defaultPageSize = 24
)

// Selector is a functional option used when creating or updating a DocumentSelector.
type Selector func(*DocumentSelector)

// WithProperties defines a set of document fields to include in each hit
// (_source.includes).
//
// Example:
//
//	selector := esmap.NewDocumentSelector(
//	    esmap.WithProperties("id", "name", "price"),
//	)
func WithProperties(properties ...string) Selector {
	return func(s *DocumentSelector) {
		s.inclusions = append(s.inclusions, properties...)
	}
}

// WithoutProperties defines a set of document fields to exclude from each
// hit (_source.excludes).
func WithoutProperties(properties ...string) Selector {
	return func(s *DocumentSelector) {
		s.exclusions = append(s.exclusions, properties...)
	}
}

// WithPageSize defines how many hits a search returns. Aggregation-only
// searches use a page size of zero.
func WithPageSize(size int) Selector {
	return func(s *DocumentSelector) {
		s.pageSize = size
	}
}

// WithOffset defines the number of hits to skip.
func WithOffset(offset int) Selector {
	return func(s *DocumentSelector) {
		s.offset = offset
	}
}

// WithSort appends a field sort. Sorts apply in the order they are added.
//
// Example:
//
//	selector := esmap.NewDocumentSelector(
//	    esmap.WithSort("price", sortorder.Desc),
//	    esmap.WithSort("name.keyword", sortorder.Asc),
//	)
func WithSort(field string, order sortorder.SortOrder) Selector {
	return func(s *DocumentSelector) {
		s.sort = append(s.sort, types.SortOptions{
			SortOptions: map[string]types.FieldSort{
				field: {
					Order: &order,
				},
			},
		})
	}
}

// WithoutSort removes all sorts added so far.
func WithoutSort() Selector {
	return func(s *DocumentSelector) {
		s.sort = nil
	}
}

// NewDocumentSelector returns a new document selector with the default
// page size and no sort.
//
// Example:
//
//	selector := esmap.NewDocumentSelector(
//	    esmap.WithPageSize(10),
//	    esmap.WithOffset(20),
//	    esmap.WithSort("price", sortorder.Desc),
//	)
func NewDocumentSelector(selectors ...Selector) *DocumentSelector {
	s := &DocumentSelector{
		inclusions: []string{},
		exclusions: []string{},
		pageSize:   defaultPageSize,
	}

	for _, sel := range selectors {
		sel(s)
	}

	return s
}

// Update a DocumentSelector with new settings.
func (ds *DocumentSelector) Update(selectors ...Selector) {
	for _, selector := range selectors {
		selector(ds)
	}
}

// PageSize returns the number of hits requested.
func (ds *DocumentSelector) PageSize() int {
	return ds.pageSize
}

// Offset returns the number of hits skipped.
func (ds *DocumentSelector) Offset() int {
	return ds.offset
}
