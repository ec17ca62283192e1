package agg

import "github.com/pkg/errors"

var (
	// ErrMissingField is returned when a response fragment lacks a member
	// required by the aggregation that produced it.
	ErrMissingField = errors.New("missing field in aggregation response")
	// ErrInvalidResponse is returned when a response fragment has the wrong JSON type.
	ErrInvalidResponse = errors.New("invalid aggregation response")
	// ErrAggregationNotFound is returned by lookups of unregistered sub-aggregation names.
	ErrAggregationNotFound = errors.New("aggregation not found")
	// ErrUnexpectedResult is returned by Get when the result has another type.
	ErrUnexpectedResult = errors.New("unexpected aggregation result type")
	// ErrInvalidDefinition is returned by Decode for malformed aggregation definitions.
	ErrInvalidDefinition = errors.New("invalid aggregation definition")
	// ErrUnknownKind is returned by Decode for aggregation kinds it does not know.
	ErrUnknownKind = errors.New("unknown aggregation kind")
	// ErrUnhashableMapper is returned when an instance mapper cannot be used as a map key.
	ErrUnhashableMapper = errors.New("instance mapper is not comparable")
)
