package agg

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Expression is an aggregation request node. The set of implementations is
// closed: every kind the package can match against a response is declared here.
type Expression interface {
	// Kind returns the wire name of the aggregation.
	Kind() Kind
	// Serialize returns the request body for this node and its sub-aggregations.
	Serialize() map[string]any
	// SubAggregations returns the named children of this node.
	SubAggregations() *Aggregations

	process(f fragment) (Result, error)
}

// Option configures an aggregation expression.
type Option func(*base)

// WithAggregation registers a named sub-aggregation.
//
// Example:
//
//	agg.NewTerms("selling_type",
//	    agg.WithAggregation("price_avg", agg.NewAvg("price")),
//	)
func WithAggregation(name string, expr Expression) Option {
	return func(b *base) {
		b.subs.Set(name, expr)
	}
}

// WithInstanceMapper attaches a mapper that resolves bucket keys to
// instances once the whole result tree has been built. It only has an
// effect on bucketed aggregations.
func WithInstanceMapper(m InstanceMapper) Option {
	return func(b *base) {
		b.mapper = m
	}
}

// WithParam sets an arbitrary aggregation parameter, passed through to the
// request body as is. A filter aggregation's body is its query, so it
// ignores parameters.
func WithParam(key string, value any) Option {
	return func(b *base) {
		b.params[key] = value
	}
}

// WithMeta attaches metadata that Elasticsearch echoes back unchanged.
func WithMeta(meta map[string]any) Option {
	return func(b *base) {
		b.meta = meta
	}
}

// WithSize sets the number of buckets to return.
func WithSize(size int) Option {
	return WithParam("size", size)
}

// WithMinDocCount sets the minimum document count of a returned bucket.
func WithMinDocCount(count int64) Option {
	return WithParam("min_doc_count", count)
}

// WithOrder sets the bucket order, e.g. WithOrder("_count", "desc").
func WithOrder(key, direction string) Option {
	return WithParam("order", map[string]any{key: direction})
}

// WithFormat sets the format used for key_as_string and value_as_string.
func WithFormat(format string) Option {
	return WithParam("format", format)
}

// WithKeyed asks the engine to return buckets as an object keyed by bucket key.
func WithKeyed() Option {
	return WithParam("keyed", true)
}

// WithCalendarInterval makes a date histogram send its interval as calendar_interval.
func WithCalendarInterval() Option {
	return func(b *base) {
		b.intervalParam = "calendar_interval"
	}
}

// WithFixedInterval makes a date histogram send its interval as fixed_interval.
func WithFixedInterval() Option {
	return func(b *base) {
		b.intervalParam = "fixed_interval"
	}
}

// base holds the state every expression shares.
type base struct {
	kind          Kind
	params        map[string]any
	subs          *Aggregations
	mapper        InstanceMapper
	meta          map[string]any
	intervalParam string
}

func newBase(kind Kind, opts []Option) base {
	b := base{
		kind:   kind,
		params: make(map[string]any),
		subs:   NewAggregations(),
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) SubAggregations() *Aggregations {
	return b.subs
}

// InstanceMapper returns the mapper attached with WithInstanceMapper, if any.
func (b *base) InstanceMapper() InstanceMapper {
	return b.mapper
}

// body wraps kind specific parameters into {kind: params, "aggregations": ...}.
// Parameters set with WithParam are merged last.
func (b *base) body(params map[string]any) map[string]any {
	for k, v := range b.params {
		params[k] = v
	}
	return b.wrap(params)
}

// wrap places inner under the kind name, next to the metadata and the
// sub-aggregations.
func (b *base) wrap(inner any) map[string]any {
	body := map[string]any{
		string(b.kind): inner,
	}
	if b.meta != nil {
		body["meta"] = b.meta
	}
	if b.subs.Len() > 0 {
		body["aggregations"] = b.subs.Serialize()
	}

	return body
}

func fieldParams(field string) map[string]any {
	params := make(map[string]any)
	if field != "" {
		params["field"] = field
	}
	return params
}

// Aggregations is an ordered collection of named aggregation expressions.
// Names are unique; setting an existing name replaces the expression in place.
type Aggregations struct {
	names []string
	exprs map[string]Expression
}

// NewAggregations returns an empty collection.
func NewAggregations() *Aggregations {
	return &Aggregations{
		exprs: make(map[string]Expression),
	}
}

// Set registers expr under name and returns the collection for chaining.
func (a *Aggregations) Set(name string, expr Expression) *Aggregations {
	if _, ok := a.exprs[name]; !ok {
		a.names = append(a.names, name)
	}
	a.exprs[name] = expr
	return a
}

// Get returns the expression registered under name.
func (a *Aggregations) Get(name string) (Expression, bool) {
	if a == nil {
		return nil, false
	}
	expr, ok := a.exprs[name]
	return expr, ok
}

// Names returns the registered names in insertion order.
func (a *Aggregations) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, len(a.names))
	copy(names, a.names)
	return names
}

// Len returns the number of registered expressions.
func (a *Aggregations) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}

// Serialize returns the aggregations clause of a search request body.
func (a *Aggregations) Serialize() map[string]any {
	out := make(map[string]any, a.Len())
	if a == nil {
		return out
	}
	for _, name := range a.names {
		out[name] = a.exprs[name].Serialize()
	}
	return out
}

// MarshalJSON writes the aggregations clause keeping insertion order at every level.
func (a *Aggregations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal aggregation name %q", name)
		}
		buf.Write(key)
		buf.WriteByte(':')

		expr := a.exprs[name]
		body := expr.Serialize()
		if expr.SubAggregations().Len() > 0 {
			body["aggregations"] = expr.SubAggregations()
		}

		value, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal aggregation %q", name)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// process matches every registered expression against the member of f
// carrying its name. A missing member is a protocol violation.
func (a *Aggregations) process(f fragment) (subResults, error) {
	subs := subResults{}
	for _, name := range a.Names() {
		child, err := f.child(name)
		if err != nil {
			return subResults{}, err
		}

		r, err := a.exprs[name].process(child)
		if err != nil {
			return subResults{}, err
		}
		subs.add(name, r)
	}
	return subs, nil
}
