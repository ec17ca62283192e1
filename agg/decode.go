package agg

import (
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// DecodeJSON parses an aggregations clause written in the search DSL, as
// produced by Serialize, back into expressions. Sub-aggregations may be
// given as "aggregations" or "aggs". Names keep the order of the document.
//
// Example:
//
//	aggs, err := agg.DecodeJSON([]byte(`{
//	    "genders": {"terms": {"field": "gender", "size": 5}},
//	    "salary": {"stats": {"field": "month_salary"}}
//	}`))
func DecodeJSON(data []byte, opts ...DecodeOption) (*Aggregations, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(ErrInvalidDefinition, "malformed JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.Wrapf(ErrInvalidDefinition, "expected object, got %s", root.Type)
	}
	return newDecodeSettings(opts).aggregations("", root)
}

// Decode is DecodeJSON for definitions already unmarshalled into a map,
// e.g. from YAML. Names are taken in sorted order.
func Decode(definition map[string]any, opts ...DecodeOption) (*Aggregations, error) {
	data, err := json.Marshal(definition)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "encode definition: %v", err)
	}
	return DecodeJSON(data, opts...)
}

type decodeSettings struct {
	mappers map[string]InstanceMapper
}

// DecodeOption configures DecodeJSON and Decode.
type DecodeOption func(*decodeSettings)

// WithMapperAt attaches m to the aggregation at path, the dot separated
// names leading to it, e.g. "everyone.genders".
func WithMapperAt(path string, m InstanceMapper) DecodeOption {
	return func(s *decodeSettings) {
		s.mappers[path] = m
	}
}

func newDecodeSettings(opts []DecodeOption) *decodeSettings {
	s := &decodeSettings{mappers: make(map[string]InstanceMapper)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *decodeSettings) aggregations(path string, v gjson.Result) (*Aggregations, error) {
	var (
		aggs = NewAggregations()
		err  error
	)
	v.ForEach(func(k, def gjson.Result) bool {
		var expr Expression
		if expr, err = s.expression(join(path, k.String()), def); err != nil {
			return false
		}
		aggs.Set(k.String(), expr)
		return true
	})
	if err != nil {
		return nil, err
	}
	return aggs, nil
}

func (s *decodeSettings) expression(path string, def gjson.Result) (Expression, error) {
	if !def.IsObject() {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: expected object, got %s", path, def.Type)
	}

	var (
		kind   Kind
		params gjson.Result
		opts   []Option
		err    error
	)
	def.ForEach(func(k, v gjson.Result) bool {
		switch k.String() {
		case "aggregations", "aggs":
			var subs *Aggregations
			if subs, err = s.aggregations(path, v); err != nil {
				return false
			}
			for _, name := range subs.Names() {
				expr, _ := subs.Get(name)
				opts = append(opts, WithAggregation(name, expr))
			}
		case "meta":
			meta, ok := v.Value().(map[string]any)
			if !ok {
				err = errors.Wrapf(ErrInvalidDefinition, "%s.meta: expected object, got %s", path, v.Type)
				return false
			}
			opts = append(opts, WithMeta(meta))
		default:
			if kind != "" {
				err = errors.Wrapf(ErrInvalidDefinition, "%s: both %s and %s given", path, kind, k.String())
				return false
			}
			kind, params = Kind(k.String()), v
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: no aggregation kind", path)
	}

	if m, ok := s.mappers[path]; ok {
		opts = append(opts, WithInstanceMapper(m))
	}

	build, ok := decoders[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%s: %s", path, kind)
	}
	if !params.IsObject() {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s.%s: expected object, got %s", path, kind, params.Type)
	}

	p := &paramSet{path: join(path, kind.String()), json: params, used: make(map[string]bool)}
	return build(kind, p, opts)
}

type decoder func(kind Kind, p *paramSet, opts []Option) (Expression, error)

var decoders map[Kind]decoder

func init() {
	decoders = map[Kind]decoder{
		KindAvg:             decodeValueMetric,
		KindMin:             decodeValueMetric,
		KindMax:             decodeValueMetric,
		KindSum:             decodeValueMetric,
		KindValueCount:      decodeValueMetric,
		KindCardinality:     decodeValueMetric,
		KindStats:           decodeStats,
		KindExtendedStats:   decodeStats,
		KindPercentiles:     decodePercentiles,
		KindPercentileRanks: decodePercentiles,
		KindGlobal:          decodeSingleBucket,
		KindFilter:          decodeFilter,
		KindNested:          decodeSingleBucket,
		KindReverseNested:   decodeSingleBucket,
		KindMissing:         decodeSingleBucket,
		KindTerms:           decodeTerms,
		KindSignificant:     decodeTerms,
		KindHistogram:       decodeHistogram,
		KindDateHistogram:   decodeDateHistogram,
		KindRange:           decodeRange,
		KindDateRange:       decodeRange,
		KindFilters:         decodeFilters,
	}
}

func decodeValueMetric(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	return newValueMetric(kind, field, p.rest(opts)), nil
}

func decodeStats(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	if kind == KindExtendedStats {
		return NewExtendedStats(field, p.rest(opts)...), nil
	}
	return NewStats(field, p.rest(opts)...), nil
}

func decodePercentiles(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	key := "percents"
	if kind == KindPercentileRanks {
		key = "values"
	}
	points, err := p.floats(key)
	if err != nil {
		return nil, err
	}
	if kind == KindPercentileRanks {
		return NewPercentileRanks(field, points, p.rest(opts)...), nil
	}
	return NewPercentiles(field, points, p.rest(opts)...), nil
}

func decodeSingleBucket(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	switch kind {
	case KindNested:
		return NewNested(p.string("path"), p.rest(opts)...), nil
	case KindReverseNested:
		return NewReverseNested(p.string("path"), p.rest(opts)...), nil
	case KindMissing:
		return NewMissing(p.string("field"), p.rest(opts)...), nil
	default:
		return NewGlobal(p.rest(opts)...), nil
	}
}

func decodeFilter(_ Kind, p *paramSet, opts []Option) (Expression, error) {
	var query types.Query
	if err := json.Unmarshal([]byte(p.json.Raw), &query); err != nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: %v", p.path, err)
	}
	return NewFilter(query, opts...), nil
}

func decodeTerms(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	if kind == KindSignificant {
		return NewSignificantTerms(field, p.rest(opts)...), nil
	}
	return NewTerms(field, p.rest(opts)...), nil
}

func decodeHistogram(_ Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	interval, ok := p.take("interval")
	if !ok || interval.Type != gjson.Number {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: numeric interval required", p.path)
	}
	return NewHistogram(field, interval.Float(), p.rest(opts)...), nil
}

func decodeDateHistogram(_ Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	for _, key := range []string{"calendar_interval", "fixed_interval", "interval"} {
		v, ok := p.take(key)
		if !ok {
			continue
		}
		param := key
		opts = append(opts, func(b *base) { b.intervalParam = param })
		return NewDateHistogram(field, v.String(), p.rest(opts)...), nil
	}
	return nil, errors.Wrapf(ErrInvalidDefinition, "%s: interval required", p.path)
}

func decodeRange(kind Kind, p *paramSet, opts []Option) (Expression, error) {
	field := p.string("field")
	raw, ok := p.take("ranges")
	if !ok || !raw.IsArray() {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: ranges required", p.path)
	}

	var ranges []RangeBound
	for _, item := range raw.Array() {
		bound := RangeBound{Key: item.Get("key").String()}
		if from := item.Get("from"); from.Exists() && from.Type != gjson.Null {
			bound.From = from.Value()
		}
		if to := item.Get("to"); to.Exists() && to.Type != gjson.Null {
			bound.To = to.Value()
		}
		ranges = append(ranges, bound)
	}

	if kind == KindDateRange {
		return NewDateRange(field, ranges, p.rest(opts)...), nil
	}
	return NewRange(field, ranges, p.rest(opts)...), nil
}

func decodeFilters(_ Kind, p *paramSet, opts []Option) (Expression, error) {
	raw, ok := p.take("filters")
	if !ok {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s: filters required", p.path)
	}

	switch {
	case raw.IsArray():
		var queries []types.Query
		if err := json.Unmarshal([]byte(raw.Raw), &queries); err != nil {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s.filters: %v", p.path, err)
		}
		return NewFilters(queries, p.rest(opts)...), nil
	case raw.IsObject():
		queries := make(map[string]types.Query)
		if err := json.Unmarshal([]byte(raw.Raw), &queries); err != nil {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s.filters: %v", p.path, err)
		}
		return NewKeyedFilters(queries, p.rest(opts)...), nil
	default:
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s.filters: expected array or object, got %s", p.path, raw.Type)
	}
}

// paramSet tracks which parameters a decoder consumed; the rest are passed
// through with WithParam.
type paramSet struct {
	path string
	json gjson.Result
	used map[string]bool
}

func (p *paramSet) take(key string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	p.json.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found, ok = v, true
			return false
		}
		return true
	})
	if ok {
		p.used[key] = true
	}
	return found, ok
}

func (p *paramSet) string(key string) string {
	v, _ := p.take(key)
	return v.String()
}

func (p *paramSet) floats(key string) ([]float64, error) {
	v, ok := p.take(key)
	if !ok {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, errors.Wrapf(ErrInvalidDefinition, "%s.%s: expected array, got %s", p.path, key, v.Type)
	}

	var out []float64
	for _, item := range v.Array() {
		if item.Type != gjson.Number {
			return nil, errors.Wrapf(ErrInvalidDefinition, "%s.%s: expected numbers", p.path, key)
		}
		out = append(out, item.Float())
	}
	return out, nil
}

func (p *paramSet) rest(opts []Option) []Option {
	p.json.ForEach(func(k, v gjson.Result) bool {
		if !p.used[k.String()] {
			opts = append(opts, WithParam(k.String(), v.Value()))
		}
		return true
	})
	return opts
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
