package agg

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// SingleBucket is an aggregation that narrows the document set to exactly
// one bucket (global, filter, nested, reverse_nested, missing) and runs its
// sub-aggregations inside it.
type SingleBucket struct {
	base
	Path  string
	Field string
	Query *types.Query
}

// NewGlobal runs its sub-aggregations over every document in the searched
// indices, ignoring the search query.
//
// Example:
//
//	agg.NewGlobal(
//	    agg.WithAggregation("price_avg", agg.NewAvg("price")),
//	)
func NewGlobal(opts ...Option) *SingleBucket {
	return &SingleBucket{base: newBase(KindGlobal, opts)}
}

// NewFilter runs its sub-aggregations over the documents matching query.
//
// Example:
//
//	agg.NewFilter(types.Query{
//	    Term: map[string]types.TermQuery{
//	        "company": {Value: 1},
//	    },
//	})
func NewFilter(query types.Query, opts ...Option) *SingleBucket {
	return &SingleBucket{base: newBase(KindFilter, opts), Query: &query}
}

// NewNested runs its sub-aggregations over the nested documents at path.
func NewNested(path string, opts ...Option) *SingleBucket {
	return &SingleBucket{base: newBase(KindNested, opts), Path: path}
}

// NewReverseNested joins back from nested documents to their parent. An
// empty path joins back to the root document.
func NewReverseNested(path string, opts ...Option) *SingleBucket {
	return &SingleBucket{base: newBase(KindReverseNested, opts), Path: path}
}

// NewMissing runs its sub-aggregations over the documents lacking a value for field.
func NewMissing(field string, opts ...Option) *SingleBucket {
	return &SingleBucket{base: newBase(KindMissing, opts), Field: field}
}

func (a *SingleBucket) Serialize() map[string]any {
	switch a.kind {
	case KindFilter:
		return a.wrap(a.Query)
	case KindNested, KindReverseNested:
		params := make(map[string]any)
		if a.Path != "" {
			params["path"] = a.Path
		}
		return a.body(params)
	case KindMissing:
		return a.body(fieldParams(a.Field))
	default:
		return a.body(make(map[string]any))
	}
}

func (a *SingleBucket) process(f fragment) (Result, error) {
	r := &SingleBucketResult{kind: a.kind}

	if a.kind == KindNested {
		r.DocCount = f.optionalInt64("doc_count")
	} else {
		count, err := f.int64("doc_count")
		if err != nil {
			return nil, err
		}
		r.DocCount = count
	}

	subs, err := a.subs.process(f)
	if err != nil {
		return nil, err
	}
	r.subResults = subs

	return r, nil
}

// SingleBucketResult holds the outcome of a single bucket aggregation.
// DocCount is zero for nested results that do not report it.
type SingleBucketResult struct {
	subResults
	kind     Kind
	DocCount int64
}

func (r *SingleBucketResult) Kind() Kind { return r.kind }
func (r *SingleBucketResult) isResult()  {}
