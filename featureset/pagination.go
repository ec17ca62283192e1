package featureset

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/reveald/esmap"
)

const (
	defaultPageSize int = 24
)

type PaginationFeature struct {
	pageSize    int
	maxPageSize int
	maxOffset   int
}

type PaginationOption func(*PaginationFeature)

func WithPageSize(pageSize int) PaginationOption {
	return func(pf *PaginationFeature) {
		pf.pageSize = pageSize
	}
}

func WithMaxPageSize(maxPageSize int) PaginationOption {
	return func(pf *PaginationFeature) {
		pf.maxPageSize = maxPageSize
	}
}

func WithMaxOffset(maxOffset int) PaginationOption {
	return func(pf *PaginationFeature) {
		pf.maxOffset = maxOffset
	}
}

// NewPaginationFeature reads the "offset" and "size" parameters. Values
// that are out of bounds fall back to offset zero and the default page size.
func NewPaginationFeature(opts ...PaginationOption) *PaginationFeature {
	pf := &PaginationFeature{
		pageSize:    defaultPageSize,
		maxPageSize: defaultPageSize,
		maxOffset:   -1,
	}

	for _, opt := range opts {
		opt(pf)
	}

	return pf
}

func (pf *PaginationFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	offset, pageSize := pf.bounds(builder)

	builder.
		Selection().
		Update(
			esmap.WithPageSize(pageSize),
			esmap.WithOffset(offset))

	r, err := next(builder)
	if r == nil {
		return nil, err
	}

	r.Pagination = &esmap.ResultPagination{
		Offset:   offset,
		PageSize: pageSize,
	}
	return r, err
}

func (pf *PaginationFeature) bounds(builder *esmap.QueryBuilder) (int, int) {
	offset, err := toValue(builder, "offset")
	if err != nil || offset < 0 || (pf.maxOffset > 0 && offset > pf.maxOffset) {
		offset = 0
	}

	pageSize, err := toValue(builder, "size")
	if err != nil || pageSize < 0 || pageSize > pf.maxPageSize {
		pageSize = pf.pageSize
	}

	return offset, pageSize
}

func toValue(builder *esmap.QueryBuilder, param string) (int, error) {
	v, ok := builder.Param(param)
	if !ok {
		return -1, errors.Errorf("parameter %q not set", param)
	}

	return strconv.Atoi(v)
}
