package agg

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/calendarinterval"
)

// Histogram buckets numeric or date values into fixed width intervals.
type Histogram struct {
	base
	Field    string
	Interval any
}

// NewHistogram buckets the values of field into intervals of the given width.
//
// Example:
//
//	agg.NewHistogram("price", 50)
func NewHistogram(field string, interval float64, opts ...Option) *Histogram {
	return &Histogram{base: newBase(KindHistogram, opts), Field: field, Interval: interval}
}

// NewDateHistogram buckets the values of a date field. Calendar units
// ("month", "1M", "week", ...) are sent as calendar_interval, anything else
// ("7d", "90m") as fixed_interval, unless WithCalendarInterval or
// WithFixedInterval says otherwise.
//
// Example:
//
//	agg.NewDateHistogram("created_at", "month", agg.WithFormat("yyyy-MM"))
func NewDateHistogram(field string, interval string, opts ...Option) *DateHistogram {
	return &DateHistogram{Histogram{base: newBase(KindDateHistogram, opts), Field: field, Interval: interval}}
}

func (a *Histogram) Serialize() map[string]any {
	params := fieldParams(a.Field)
	if a.Interval != nil {
		params["interval"] = a.Interval
	}
	return a.body(params)
}

func (a *Histogram) process(f fragment) (Result, error) {
	return a.processBuckets(f, nil)
}

// DateHistogram is a histogram over a date field.
type DateHistogram struct {
	Histogram
}

func (a *DateHistogram) Serialize() map[string]any {
	params := fieldParams(a.Field)
	if interval, ok := a.Interval.(string); ok && interval != "" {
		key := a.intervalParam
		if key == "" {
			key = "fixed_interval"
			if isCalendarInterval(interval) {
				key = "calendar_interval"
			}
		}
		params[key] = interval
	}
	return a.body(params)
}

var calendarUnits = map[string]bool{
	"1s": true, "1m": true, "1h": true, "1d": true,
	"1w": true, "1M": true, "1q": true, "1y": true,
}

func isCalendarInterval(interval string) bool {
	if calendarUnits[interval] {
		return true
	}
	for _, ci := range []calendarinterval.CalendarInterval{
		calendarinterval.Second,
		calendarinterval.Minute,
		calendarinterval.Hour,
		calendarinterval.Day,
		calendarinterval.Week,
		calendarinterval.Month,
		calendarinterval.Quarter,
		calendarinterval.Year,
	} {
		if ci.String() == interval {
			return true
		}
	}
	return false
}
