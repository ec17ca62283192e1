package esmap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// FeatureFunc is a type alias for the `next` feature
// to process a request/response stream
type FeatureFunc func(*QueryBuilder) (*Result, error)

// Feature is an interface which defines a search building block. A feature
// adjusts the builder, calls next and may then adjust the result.
type Feature interface {
	Process(*QueryBuilder, FeatureFunc) (*Result, error)
}

// Backend is an interface defining the backing
// search engine
type Backend interface {
	Execute(context.Context, *QueryBuilder) (*Result, error)
	ExecuteMultiple(context.Context, []*QueryBuilder) ([]*Result, error)
}

// Endpoint defines an entry point for a specific search
// query type
type Endpoint struct {
	backend  Backend
	indices  []string
	features []Feature
}

// Indices is a type alias for a string slice
type Indices []string

// WithIndices defines an index collection that
// an Endpoint should query
func WithIndices(index ...string) Indices {
	var collection Indices
	collection = append(collection, index...)
	return collection
}

// NewEndpoint returns a new Endpoint for a specific
// search query type
//
// Example:
//
//	endpoint := esmap.NewEndpoint(backend, esmap.WithIndices("employees"))
//	endpoint.Register(
//	    featureset.NewPaginationFeature(featureset.WithPageSize(0)),
//	    featureset.NewTermsFeature("gender", featureset.WithInstanceMapper(genders)),
//	)
func NewEndpoint(backend Backend, indices Indices) *Endpoint {
	return &Endpoint{
		backend: backend,
		indices: indices,
	}
}

// Register a new set of features used when building
// a search query
func (e *Endpoint) Register(features ...Feature) error {
	for _, f := range features {
		if f == nil {
			return errors.New("cannot register a nil feature")
		}
	}
	e.features = append(e.features, features...)
	return nil
}

func (e *Endpoint) chain() *callchain {
	cc := &callchain{}
	for _, feature := range e.features {
		cc.add(feature)
	}
	return cc
}

// Execute builds a query for the endpoint indices, lets prepare adjust it
// and runs it through the registered features and the backend.
//
// Example:
//
//	result, err := endpoint.Execute(ctx, func(qb *esmap.QueryBuilder) {
//	    qb.With(types.Query{Term: map[string]types.TermQuery{"active": {Value: true}}})
//	})
func (e *Endpoint) Execute(ctx context.Context, prepare ...func(*QueryBuilder)) (*Result, error) {
	start := time.Now()
	builder := NewQueryBuilder(e.indices...)
	for _, p := range prepare {
		p(builder)
	}

	result, err := e.chain().exec(builder, func(qb *QueryBuilder) (*Result, error) {
		return e.backend.Execute(ctx, qb)
	})
	if result == nil {
		if err == nil {
			err = errors.New("no result")
		}
		return nil, errors.Wrap(err, "backend failed executing request")
	}

	result.Duration = time.Since(start)
	return result, err
}

// ExecuteMultiple runs Execute once per prepare function, in order. A
// failing search stops the batch; instance mapping errors are combined and
// returned with all results.
func (e *Endpoint) ExecuteMultiple(ctx context.Context, prepare ...func(*QueryBuilder)) ([]*Result, error) {
	var (
		results = make([]*Result, 0, len(prepare))
		errs    error
	)
	for i, p := range prepare {
		result, err := e.Execute(ctx, p)
		if result == nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
		errs = multierr.Append(errs, err)
		results = append(results, result)
	}
	return results, errs
}
