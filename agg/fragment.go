package agg

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// fragment is the JSON object a single aggregation or bucket owns in a
// search response, together with its location for error messages.
type fragment struct {
	path string
	json gjson.Result
}

func newFragment(path string, v gjson.Result) (fragment, error) {
	if !v.IsObject() {
		return fragment{}, errors.Wrapf(ErrInvalidResponse, "%s: expected object, got %s", path, v.Type)
	}
	return fragment{path: path, json: v}, nil
}

// member looks a key up by exact name. gjson paths treat dots and
// wildcards specially, so user supplied names are matched by iteration.
func (f fragment) member(name string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	f.json.ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

func (f fragment) require(name string) (gjson.Result, error) {
	v, ok := f.member(name)
	if !ok {
		return gjson.Result{}, errors.Wrapf(ErrMissingField, "%s.%s", f.path, name)
	}
	return v, nil
}

func (f fragment) child(name string) (fragment, error) {
	v, err := f.require(name)
	if err != nil {
		return fragment{}, err
	}
	return newFragment(f.at(name), v)
}

func (f fragment) at(name string) string {
	if f.path == "" {
		return name
	}
	return f.path + "." + name
}

func (f fragment) index(i int) string {
	return fmt.Sprintf("%s[%d]", f.path, i)
}

func (f fragment) int64(name string) (int64, error) {
	v, err := f.require(name)
	if err != nil {
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, errors.Wrapf(ErrInvalidResponse, "%s: expected number, got %s", f.at(name), v.Type)
	}
	return v.Int(), nil
}

// float64 reads a required metric value. Elasticsearch reports metrics
// over empty sets as null, which is mapped to NaN.
func (f fragment) float64(name string) (float64, error) {
	v, err := f.require(name)
	if err != nil {
		return 0, err
	}
	return number(f.at(name), v)
}

func (f fragment) optionalInt64(name string) int64 {
	v, ok := f.member(name)
	if !ok || v.Type != gjson.Number {
		return 0
	}
	return v.Int()
}

func (f fragment) optionalFloat64(name string) *float64 {
	v, ok := f.member(name)
	if !ok || v.Type != gjson.Number {
		return nil
	}
	n := v.Float()
	return &n
}

func (f fragment) optionalString(name string) string {
	v, ok := f.member(name)
	if !ok || v.Type != gjson.String {
		return ""
	}
	return v.String()
}

func number(path string, v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.Null:
		return math.NaN(), nil
	default:
		return 0, errors.Wrapf(ErrInvalidResponse, "%s: expected number, got %s", path, v.Type)
	}
}
