package agg

// Terms buckets documents by the distinct values of a field.
type Terms struct {
	base
	Field string
}

// NewTerms buckets documents by the values of field.
//
// Example:
//
//	agg.NewTerms("gender",
//	    agg.WithSize(10),
//	    agg.WithInstanceMapper(genders),
//	)
func NewTerms(field string, opts ...Option) *Terms {
	return &Terms{base: newBase(KindTerms, opts), Field: field}
}

// NewSignificantTerms buckets documents by the values of field that are
// unusually frequent in the result set compared to the background set.
func NewSignificantTerms(field string, opts ...Option) *Terms {
	return &Terms{base: newBase(KindSignificant, opts), Field: field}
}

func (a *Terms) Serialize() map[string]any {
	return a.body(fieldParams(a.Field))
}

func (a *Terms) process(f fragment) (Result, error) {
	if a.kind == KindSignificant {
		return a.processSignificant(f)
	}

	r, err := a.processBuckets(f, nil)
	if err != nil {
		return nil, err
	}
	r.DocCountErrorUpperBound = f.optionalInt64("doc_count_error_upper_bound")
	r.SumOtherDocCount = f.optionalInt64("sum_other_doc_count")
	return r, nil
}

func (a *Terms) processSignificant(f fragment) (Result, error) {
	count, err := f.int64("doc_count")
	if err != nil {
		return nil, err
	}

	r, err := a.processBuckets(f, func(bf fragment, b *Bucket) error {
		var err error
		if b.Score, err = bf.float64("score"); err != nil {
			return err
		}
		b.BgCount, err = bf.int64("bg_count")
		return err
	})
	if err != nil {
		return nil, err
	}
	r.DocCount = count
	return r, nil
}
