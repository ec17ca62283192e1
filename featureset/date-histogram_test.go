package featureset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

func Test_DateHistogramFeature_Aggregation(t *testing.T) {
	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)

	table := []struct {
		name    string
		feature *DateHistogramFeature
		result  string
	}{
		{
			"calendar unit",
			NewDateHistogramFeature("hired_at", Month),
			`{"hired_at": {"date_histogram": {"field": "hired_at", "calendar_interval": "month", "format": "yyyy-MM-dd HH:mm:ss"}}}`,
		},
		{
			"fixed unit",
			NewDateHistogramFeature("hired_at", Hour12, WithDateFormat("yyyy-MM-dd")),
			`{"hired_at": {"date_histogram": {"field": "hired_at", "fixed_interval": "12h", "format": "yyyy-MM-dd"}}}`,
		},
		{
			"explicit fixed interval",
			NewDateHistogramFeature("hired_at", Day, WithFixedInterval("7d"), WithMinDateDocumentCount(2)),
			`{"hired_at": {"date_histogram": {"field": "hired_at", "fixed_interval": "7d", "format": "yyyy-MM-dd HH:mm:ss", "min_doc_count": 2}}}`,
		},
		{
			"calendar instead",
			NewDateHistogramFeature("hired_at", "1w", WithCalendarIntervalInstead(), WithDateTimeZone("Europe/Stockholm")),
			`{"hired_at": {"date_histogram": {"field": "hired_at", "calendar_interval": "1w", "format": "yyyy-MM-dd HH:mm:ss", "time_zone": "Europe/Stockholm"}}}`,
		},
		{
			"extended bounds descending",
			NewDateHistogramFeature("hired_at", Month,
				WithExtendedBounds(), WithMinimumDate(jan), WithMaximumDate(dec), WithDescendingOrder()),
			`{"hired_at": {"date_histogram": {"field": "hired_at", "calendar_interval": "month", "format": "yyyy-MM-dd HH:mm:ss",
				"order": {"_key": "desc"},
				"extended_bounds": {"min": 1704067200000, "max": 1733011200000}}}}`,
		},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			qb := esmap.NewQueryBuilder("-")
			_, err := tt.feature.Process(qb, noop)
			require.NoError(t, err)
			assert.JSONEq(t, tt.result, aggregations(t, qb))
		})
	}
}

func Test_DateHistogramFeature_DefaultBounds(t *testing.T) {
	feature := NewDateHistogramFeature("hired_at", Month, WithDefaultBounds("2024-01-01T00:00:00Z", "not a date"))
	require.NotNil(t, feature.defaultLowerThreshold)
	assert.Equal(t, int64(1704067200000), feature.defaultLowerThreshold.UnixMilli())
	assert.Nil(t, feature.defaultUpperThreshold)
}

func Test_DateHistogramFeature_RangeFilter(t *testing.T) {
	qb := esmap.NewQueryBuilder("-")
	qb.SetParam("hired_at.from", "2024-01-01")
	qb.SetParam("hired_at.to", "2024-03-31")

	_, err := NewDateHistogramFeature("hired_at", Month).Process(qb, noop)
	require.NoError(t, err)

	query, err := json.Marshal(qb.RawQuery())
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool": {"must": [{"range": {"hired_at": {"gte": "2024-01-01", "lte": "2024-03-31"}}}]}}`, string(query))
}

func Test_DateHistogramFeature_EmptyBuckets(t *testing.T) {
	raw := `{"hired_at": {"buckets": [
		{"key_as_string": "2024-01", "key": 1704067200000, "doc_count": 1},
		{"key_as_string": "2024-02", "key": 1706745600000, "doc_count": 0},
		{"key_as_string": "2024-03", "key": 1709251200000, "doc_count": 2}
	]}}`

	table := []struct {
		name    string
		feature *DateHistogramFeature
		keys    []string
	}{
		{"dropped", NewDateHistogramFeature("hired_at", Month), []string{"2024-01", "2024-03"}},
		{"kept", NewDateHistogramFeature("hired_at", Month, WithEmptyBuckets()), []string{"2024-01", "2024-02", "2024-03"}},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.feature.Process(esmap.NewQueryBuilder("-"), respond(raw))
			require.NoError(t, err)

			histogram, err := agg.Get[*agg.BucketsResult](r, "hired_at")
			require.NoError(t, err)

			var keys []string
			for _, b := range histogram.Buckets {
				keys = append(keys, b.KeyString())
			}
			assert.Equal(t, tt.keys, keys)
		})
	}
}
