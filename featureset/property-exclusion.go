package featureset

import "github.com/reveald/esmap"

// PropertyExclusionFeature removes a set of properties from the source of every hit.
type PropertyExclusionFeature struct {
	properties []string
}

func NewPropertyExclusionFeature(properties ...string) *PropertyExclusionFeature {
	return &PropertyExclusionFeature{properties}
}

func (pef *PropertyExclusionFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	builder.
		Selection().
		Update(esmap.WithoutProperties(pef.properties...))

	return next(builder)
}
