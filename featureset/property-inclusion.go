package featureset

import "github.com/reveald/esmap"

// PropertyInclusionFeature limits the source of every hit to a set of properties.
type PropertyInclusionFeature struct {
	properties []string
}

func NewPropertyInclusionFeature(properties ...string) *PropertyInclusionFeature {
	return &PropertyInclusionFeature{properties}
}

func (pif *PropertyInclusionFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	builder.
		Selection().
		Update(esmap.WithProperties(pif.properties...))

	return next(builder)
}
