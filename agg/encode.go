package agg

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// member is one key of an ordered JSON object.
type member struct {
	key   string
	value any
}

// object encodes its members in order. A sub-aggregation named like one of
// the result's own members (key, doc_count, instance, ...) cannot be
// rendered and fails the encoding.
type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var (
		buf  bytes.Buffer
		seen = make(map[string]struct{}, len(o))
	)
	buf.WriteByte('{')
	for i, m := range o {
		if _, ok := seen[m.key]; ok {
			return nil, errors.Errorf("duplicate member %q", m.key)
		}
		seen[m.key] = struct{}{}

		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(m.value)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %q", m.key)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonFloat maps NaN and infinities to null.
func jsonFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func (s *subResults) members() object {
	o := make(object, 0, len(s.names))
	for _, name := range s.names {
		o = append(o, member{name, s.results[name]})
	}
	return o
}

// MarshalJSON renders the results keyed by aggregation name, in the order
// the expressions were registered.
func (r *Results) MarshalJSON() ([]byte, error) {
	return r.members().MarshalJSON()
}

func (r *ValueResult) MarshalJSON() ([]byte, error) {
	o := object{{"value", jsonFloat(r.Value)}}
	if r.ValueAsString != "" {
		o = append(o, member{"value_as_string", r.ValueAsString})
	}
	return o.MarshalJSON()
}

func (r *StatsResult) members() object {
	return object{
		{"count", r.Count},
		{"min", jsonFloat(r.Min)},
		{"max", jsonFloat(r.Max)},
		{"avg", jsonFloat(r.Avg)},
		{"sum", jsonFloat(r.Sum)},
	}
}

func (r *StatsResult) MarshalJSON() ([]byte, error) {
	return r.members().MarshalJSON()
}

func (r *ExtendedStatsResult) MarshalJSON() ([]byte, error) {
	return append(r.StatsResult.members(),
		member{"sum_of_squares", jsonFloat(r.SumOfSquares)},
		member{"variance", jsonFloat(r.Variance)},
		member{"std_deviation", jsonFloat(r.StdDeviation)},
	).MarshalJSON()
}

func (r *PercentilesResult) MarshalJSON() ([]byte, error) {
	values := make(object, 0, len(r.Keys))
	for _, k := range r.Keys {
		values = append(values, member{k, jsonFloat(r.Values[k])})
	}
	return object{{"values", values}}.MarshalJSON()
}

func (r *SingleBucketResult) MarshalJSON() ([]byte, error) {
	return append(object{{"doc_count", r.DocCount}}, r.members()...).MarshalJSON()
}

func (r *BucketsResult) MarshalJSON() ([]byte, error) {
	buckets := r.Buckets
	if buckets == nil {
		buckets = []*Bucket{}
	}

	var o object
	switch r.kind {
	case KindSignificant:
		o = append(o, member{"doc_count", r.DocCount})
	case KindTerms:
		o = append(o,
			member{"doc_count_error_upper_bound", r.DocCountErrorUpperBound},
			member{"sum_other_doc_count", r.SumOtherDocCount})
	}
	return append(o, member{"buckets", buckets}).MarshalJSON()
}

// MarshalJSON renders the bucket in response shape, with the resolved
// instance under "instance" when there is one.
func (b *Bucket) MarshalJSON() ([]byte, error) {
	var o object
	if b.Key != nil {
		o = append(o, member{"key", b.Key})
	}
	if b.KeyAsString != "" {
		o = append(o, member{"key_as_string", b.KeyAsString})
	}
	if b.From != nil {
		o = append(o, member{"from", jsonFloat(*b.From)})
	}
	if b.FromAsString != "" {
		o = append(o, member{"from_as_string", b.FromAsString})
	}
	if b.To != nil {
		o = append(o, member{"to", jsonFloat(*b.To)})
	}
	if b.ToAsString != "" {
		o = append(o, member{"to_as_string", b.ToAsString})
	}
	o = append(o, member{"doc_count", b.DocCount})
	if b.kind == KindSignificant {
		o = append(o, member{"score", b.Score}, member{"bg_count", b.BgCount})
	}
	if b.Instance != nil {
		o = append(o, member{"instance", b.Instance})
	}
	return append(o, b.members()...).MarshalJSON()
}
