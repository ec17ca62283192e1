package agg

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/pkg/errors"
)

// Filters buckets documents by a set of queries, one bucket per query.
// Anonymous filters produce buckets with a nil key in query order; keyed
// filters produce buckets keyed by filter name in response order.
type Filters struct {
	base
	Queries []types.Query
	Keyed   map[string]types.Query
}

// NewFilters creates one anonymous bucket per query.
//
// Example:
//
//	agg.NewFilters([]types.Query{
//	    {Term: map[string]types.TermQuery{"body": {Value: "error"}}},
//	    {Term: map[string]types.TermQuery{"body": {Value: "warning"}}},
//	})
func NewFilters(queries []types.Query, opts ...Option) *Filters {
	return &Filters{base: newBase(KindFilters, opts), Queries: queries}
}

// NewKeyedFilters creates one bucket per named query.
//
// Example:
//
//	agg.NewKeyedFilters(map[string]types.Query{
//	    "errors":   {Term: map[string]types.TermQuery{"body": {Value: "error"}}},
//	    "warnings": {Term: map[string]types.TermQuery{"body": {Value: "warning"}}},
//	})
func NewKeyedFilters(queries map[string]types.Query, opts ...Option) *Filters {
	if queries == nil {
		queries = make(map[string]types.Query)
	}
	return &Filters{base: newBase(KindFilters, opts), Keyed: queries}
}

// IsKeyed reports whether the filters were given by name.
func (a *Filters) IsKeyed() bool {
	return a.Keyed != nil
}

func (a *Filters) Serialize() map[string]any {
	params := make(map[string]any)
	if a.IsKeyed() {
		params["filters"] = a.Keyed
	} else {
		queries := a.Queries
		if queries == nil {
			queries = []types.Query{}
		}
		params["filters"] = queries
	}
	return a.body(params)
}

// process requires the bucket encoding that matches the form the filters
// were declared in: an object for keyed filters, an array otherwise.
func (a *Filters) process(f fragment) (Result, error) {
	raw, err := f.require("buckets")
	if err != nil {
		return nil, err
	}
	if a.IsKeyed() && !raw.IsObject() {
		return nil, errors.Wrapf(ErrInvalidResponse, "%s: keyed filters expect an object, got %s", f.at("buckets"), raw.Type)
	}
	if !a.IsKeyed() && !raw.IsArray() {
		return nil, errors.Wrapf(ErrInvalidResponse, "%s: anonymous filters expect an array, got %s", f.at("buckets"), raw.Type)
	}

	r, err := a.processBuckets(f, nil)
	if err != nil {
		return nil, err
	}
	if !a.IsKeyed() {
		for _, b := range r.Buckets {
			b.Key = nil
		}
	}
	return r, nil
}
