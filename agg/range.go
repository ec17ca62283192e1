package agg

// RangeBound is one requested range. From is inclusive, To exclusive;
// a nil bound leaves that end open. Dates may be given as strings or
// date math ("now-1M/M").
type RangeBound struct {
	Key  string
	From any
	To   any
}

func (r RangeBound) serialize() map[string]any {
	out := make(map[string]any)
	if r.Key != "" {
		out["key"] = r.Key
	}
	if r.From != nil {
		out["from"] = r.From
	}
	if r.To != nil {
		out["to"] = r.To
	}
	return out
}

// Range buckets documents into the given value ranges.
type Range struct {
	base
	Field  string
	Ranges []RangeBound
}

// NewRange buckets the values of field into ranges.
//
// Example:
//
//	agg.NewRange("month_salary", []agg.RangeBound{
//	    {To: 1000},
//	    {From: 1000, To: 2000},
//	    {From: 2000},
//	})
func NewRange(field string, ranges []RangeBound, opts ...Option) *Range {
	return &Range{base: newBase(KindRange, opts), Field: field, Ranges: ranges}
}

// NewDateRange buckets the values of a date field into ranges.
func NewDateRange(field string, ranges []RangeBound, opts ...Option) *Range {
	return &Range{base: newBase(KindDateRange, opts), Field: field, Ranges: ranges}
}

func (a *Range) Serialize() map[string]any {
	params := fieldParams(a.Field)
	ranges := make([]map[string]any, 0, len(a.Ranges))
	for _, r := range a.Ranges {
		ranges = append(ranges, r.serialize())
	}
	params["ranges"] = ranges
	return a.body(params)
}

func (a *Range) process(f fragment) (Result, error) {
	return a.processBuckets(f, nil)
}
