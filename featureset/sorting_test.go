package featureset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap"
)

func Test_NewSortingFeature(t *testing.T) {
	table := []struct {
		name          string
		param         string
		options       []SortingOption
		defaultOption string
		result        map[string]sortingOption
	}{
		{"no options", "sort", []SortingOption{}, "", make(map[string]sortingOption)},
		{"without default", "sort", []SortingOption{WithSortOption("opt", "prop", true)}, "", map[string]sortingOption{"opt": {"prop", true}}},
		{"with default", "sort", []SortingOption{WithSortOption("opt", "prop", true), WithDefaultSortOption("opt")}, "opt", map[string]sortingOption{"opt": {"prop", true}}},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			sf := NewSortingFeature(tt.param, tt.options...)
			assert.Equal(t, tt.param, sf.param)
			assert.Equal(t, tt.defaultOption, sf.defaultOption)
			assert.Equal(t, tt.result, sf.options)
		})
	}
}

func Test_SortingFeature_Build(t *testing.T) {
	feature := NewSortingFeature("sort",
		WithSortOption("salary-asc", "month_salary", true),
		WithSortOption("salary-desc", "month_salary", false),
	)

	table := []struct {
		name   string
		param  string
		result string
	}{
		{"request missing param", "", `{"query": {"bool": {}}, "from": 0, "size": 24}`},
		{"unknown option", "name", `{"query": {"bool": {}}, "from": 0, "size": 24}`},
		{"ascending", "salary-asc", `{"query": {"bool": {}}, "from": 0, "size": 24, "sort": [{"month_salary": {"order": "asc"}}]}`},
		{"descending", "salary-desc", `{"query": {"bool": {}}, "from": 0, "size": 24, "sort": [{"month_salary": {"order": "desc"}}]}`},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			qb := esmap.NewQueryBuilder("-")
			if tt.param != "" {
				qb.SetParam("sort", tt.param)
			}

			_, err := feature.Process(qb, noop)
			require.NoError(t, err)
			assert.JSONEq(t, tt.result, body(t, qb))
		})
	}
}

func Test_SortingFeature_DefaultSelected(t *testing.T) {
	feature := NewSortingFeature("sort",
		WithDefaultSortOption("nameAsc"),
		WithSortOption("nameAsc", "property", true),
		WithSortOption("nameDesc", "property", false),
	)

	table := []struct {
		name         string
		param        string
		selectedName string
	}{
		{"request missing param", "", "nameAsc"},
		{"request with param", "nameDesc", "nameDesc"},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			qb := esmap.NewQueryBuilder("-")
			if tt.param != "" {
				qb.SetParam("sort", tt.param)
			}

			r, err := feature.Process(qb, noop)
			require.NoError(t, err)
			require.NotNil(t, r.Sorting)
			assert.Equal(t, "sort", r.Sorting.Param)
			require.Len(t, r.Sorting.Options, 2)
			assert.Equal(t, "nameAsc", r.Sorting.Options[0].Name)

			var selected []string
			for _, so := range r.Sorting.Options {
				if so.Selected {
					selected = append(selected, so.Name)
				}
			}
			assert.Equal(t, []string{tt.selectedName}, selected)
		})
	}
}

func Test_SortingFeature_ResultJSON(t *testing.T) {
	feature := NewSortingFeature("sort", WithSortOption("newest", "hired_at", false))

	r, err := feature.Process(esmap.NewQueryBuilder("-"), noop)
	require.NoError(t, err)

	data, err := json.Marshal(r.Sorting)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Param": "sort", "Options": [
		{"Name": "newest", "Property": "hired_at", "Ascending": false, "Selected": false}
	]}`, string(data))
}
