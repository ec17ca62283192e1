package featureset

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
)

// ScriptedFieldFeature adds a painless script field to every hit.
type ScriptedFieldFeature struct {
	fieldName string
	script    string
}

func NewScriptedFieldFeature(fieldName, script string) *ScriptedFieldFeature {
	return &ScriptedFieldFeature{fieldName, script}
}

func (sff *ScriptedFieldFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	builder.WithScriptedField(sff.fieldName, &types.Script{Source: &sff.script})
	return next(builder)
}
