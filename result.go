package esmap

import (
	"time"

	"github.com/reveald/esmap/agg"
)

// Result is a construct containing the search hits, the processed
// aggregation tree and metadata.
//
// Example:
//
//	result, err := backend.Execute(ctx, builder)
//	if err != nil {
//	    // Handle error
//	}
//
//	fmt.Printf("Found %d documents\n", result.TotalHitCount)
//
//	genders, err := agg.Get[*agg.BucketsResult](result.Aggregations, "genders")
//	if err != nil {
//	    // Handle error
//	}
//	for _, bucket := range genders.Buckets {
//	    fmt.Printf("%v: %d\n", bucket.Key, bucket.DocCount)
//	}
type Result struct {
	TotalHitCount int64
	Hits          []map[string]any
	Aggregations  *agg.Results
	Pagination    *ResultPagination
	Sorting       *ResultSorting
	Took          time.Duration
	Duration      time.Duration
}

// Aggregation returns the top-level aggregation result with the given name.
func (r *Result) Aggregation(name string) (agg.Result, error) {
	if r.Aggregations == nil {
		return (&agg.Results{}).Aggregation(name)
	}
	return r.Aggregations.Aggregation(name)
}

// ResultPagination is a container for pagination information.
type ResultPagination struct {
	Offset   int
	PageSize int
}

// ResultSorting describes the sort options offered for a search and which
// one was applied.
type ResultSorting struct {
	Param   string
	Options []*ResultSortingOption
}

// ResultSortingOption is a single named sort option.
type ResultSortingOption struct {
	Name      string
	Property  string
	Ascending bool
	Selected  bool
}
