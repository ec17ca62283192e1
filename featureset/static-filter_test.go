package featureset

import (
	"encoding/json"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap"
)

func Test_NewStaticFilterFeature(t *testing.T) {
	table := []struct {
		name    string
		options []StaticFilterOption
		result  *types.Query
	}{
		{"no options", []StaticFilterOption{}, nil},
		{"required property", []StaticFilterOption{WithRequiredProperty("property")}, &types.Query{Bool: &types.BoolQuery{
			Must: []types.Query{{Exists: &types.ExistsQuery{Field: "property"}}},
		}}},
		{"required value", []StaticFilterOption{WithRequiredValue("property", "value")}, &types.Query{Bool: &types.BoolQuery{
			Must: []types.Query{{Term: map[string]types.TermQuery{"property": {Value: "value"}}}},
		}}},
		{"excluded value", []StaticFilterOption{WithExcludedValue("property", "value")}, &types.Query{Bool: &types.BoolQuery{
			MustNot: []types.Query{{Term: map[string]types.TermQuery{"property": {Value: "value"}}}},
		}}},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			sff := NewStaticFilterFeature(tt.options...)
			assert.Equal(t, tt.result, sff.query)
		})
	}
}

func Test_StaticFilterFeature_Build(t *testing.T) {
	table := []struct {
		name    string
		options []StaticFilterOption
		result  string
	}{
		{"no options", []StaticFilterOption{}, `{"bool": {}}`},
		{"required property", []StaticFilterOption{WithRequiredProperty("property")},
			`{"bool": {"must": [{"bool": {"must": [{"exists": {"field": "property"}}]}}]}}`},
		{"required value", []StaticFilterOption{WithRequiredValue("property", "value")},
			`{"bool": {"must": [{"bool": {"must": [{"term": {"property": {"value": "value"}}}]}}]}}`},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			sff := NewStaticFilterFeature(tt.options...)
			qb := esmap.NewQueryBuilder("-")

			_, err := sff.Process(qb, func(_ *esmap.QueryBuilder) (*esmap.Result, error) {
				return nil, nil
			})
			assert.NoError(t, err)

			query, err := json.Marshal(qb.RawQuery())
			require.NoError(t, err)
			assert.JSONEq(t, tt.result, string(query))
		})
	}
}
