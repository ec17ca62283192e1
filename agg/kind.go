package agg

// Kind is the wire name of an aggregation, as it appears in a search request body.
type Kind string

const (
	KindAvg             Kind = "avg"
	KindMin             Kind = "min"
	KindMax             Kind = "max"
	KindSum             Kind = "sum"
	KindValueCount      Kind = "value_count"
	KindCardinality     Kind = "cardinality"
	KindStats           Kind = "stats"
	KindExtendedStats   Kind = "extended_stats"
	KindPercentiles     Kind = "percentiles"
	KindPercentileRanks Kind = "percentile_ranks"
	KindGlobal          Kind = "global"
	KindFilter          Kind = "filter"
	KindNested          Kind = "nested"
	KindReverseNested   Kind = "reverse_nested"
	KindMissing         Kind = "missing"
	KindTerms           Kind = "terms"
	KindSignificant     Kind = "significant_terms"
	KindHistogram       Kind = "histogram"
	KindDateHistogram   Kind = "date_histogram"
	KindRange           Kind = "range"
	KindDateRange       Kind = "date_range"
	KindFilters         Kind = "filters"
)

// String returns the wire name.
func (k Kind) String() string {
	return string(k)
}
