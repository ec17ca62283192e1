package featureset

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap"
)

// respond returns a terminal feature func which processes raw as the
// aggregations member of a search response.
func respond(raw string) esmap.FeatureFunc {
	return func(qb *esmap.QueryBuilder) (*esmap.Result, error) {
		results, err := qb.Aggregations().Process(context.Background(), json.RawMessage(raw))
		if results == nil {
			return nil, err
		}
		return &esmap.Result{Aggregations: results}, err
	}
}

func noop(_ *esmap.QueryBuilder) (*esmap.Result, error) {
	return &esmap.Result{}, nil
}

func body(t *testing.T, qb *esmap.QueryBuilder) string {
	t.Helper()
	b, err := qb.Build()
	require.NoError(t, err)
	data, err := json.Marshal(b)
	require.NoError(t, err)
	return string(data)
}

func aggregations(t *testing.T, qb *esmap.QueryBuilder) string {
	t.Helper()
	data, err := json.Marshal(qb.Aggregations())
	require.NoError(t, err)
	return string(data)
}
