package featureset

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"

	"github.com/reveald/esmap"
)

type sortingOption struct {
	property  string
	ascending bool
}

// SortingFeature offers a set of named sort options, selected through a
// parameter, and reports them on the result.
type SortingFeature struct {
	param         string
	names         []string
	options       map[string]sortingOption
	defaultOption string
}

type SortingOption func(*SortingFeature)

func WithSortOption(name, property string, ascending bool) SortingOption {
	return func(sf *SortingFeature) {
		if _, ok := sf.options[name]; !ok {
			sf.names = append(sf.names, name)
		}
		sf.options[name] = sortingOption{
			property,
			ascending,
		}
	}
}

func WithDefaultSortOption(name string) SortingOption {
	return func(sf *SortingFeature) {
		sf.defaultOption = name
	}
}

func NewSortingFeature(param string, opts ...SortingOption) *SortingFeature {
	sf := &SortingFeature{
		param:   param,
		options: make(map[string]sortingOption),
	}

	for _, opt := range opts {
		opt(sf)
	}

	return sf
}

func (sf *SortingFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	selected := sf.selected(builder)
	sf.build(builder, selected)

	r, err := next(builder)
	if r == nil {
		return nil, err
	}

	return sf.handle(selected, r), err
}

func (sf *SortingFeature) selected(builder *esmap.QueryBuilder) string {
	if v, ok := builder.Param(sf.param); ok {
		return v
	}
	return sf.defaultOption
}

func (sf *SortingFeature) build(builder *esmap.QueryBuilder, key string) {
	if key == "" {
		return
	}

	option, ok := sf.options[key]
	if !ok {
		return
	}

	order := sortorder.Desc
	if option.ascending {
		order = sortorder.Asc
	}

	builder.Selection().Update(esmap.WithSort(option.property, order))
}

func (sf *SortingFeature) handle(selected string, result *esmap.Result) *esmap.Result {
	var options []*esmap.ResultSortingOption

	for _, name := range sf.names {
		v := sf.options[name]
		options = append(options, &esmap.ResultSortingOption{
			Name:      name,
			Property:  v.property,
			Ascending: v.ascending,
			Selected:  selected == name,
		})
	}

	result.Sorting = &esmap.ResultSorting{
		Param:   sf.param,
		Options: options,
	}

	return result
}
