package agg

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Bucket is one element of a bucketed aggregation result.
//
// Key is a string, an int64 or float64 for numeric keys, or nil for
// anonymous filters and range buckets without a key. From and To are only
// set for list encoded range buckets that report them.
type Bucket struct {
	subResults
	kind Kind

	Key         any
	KeyAsString string
	DocCount    int64

	// significant_terms
	Score   float64
	BgCount int64

	// range, date_range
	From         *float64
	To           *float64
	FromAsString string
	ToAsString   string

	// Instance is set by the aggregation's instance mapper, if any, once the
	// whole result tree has been built.
	Instance any
}

// KeyString returns the formatted key, falling back to the raw key.
func (b *Bucket) KeyString() string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	if b.Key == nil {
		return ""
	}
	if s, ok := b.Key.(string); ok {
		return s
	}
	return fmt.Sprint(b.Key)
}

// BucketsResult holds the outcome of a multi bucket aggregation. Buckets
// keep the order of the response.
type BucketsResult struct {
	kind   Kind
	mapper InstanceMapper

	Buckets []*Bucket

	// significant_terms
	DocCount int64

	// terms
	DocCountErrorUpperBound int64
	SumOtherDocCount        int64
}

func (r *BucketsResult) Kind() Kind { return r.kind }
func (r *BucketsResult) isResult()  {}

// bucketExtras reads kind specific members of a single bucket.
type bucketExtras func(f fragment, b *Bucket) error

// processBuckets normalizes both bucket encodings. A "buckets" array keeps
// its order and reads key, from and to from each element; a "buckets"
// object is iterated in response order and keyed by member name.
func (b *base) processBuckets(f fragment, extras bucketExtras) (*BucketsResult, error) {
	raw, err := f.require("buckets")
	if err != nil {
		return nil, err
	}

	r := &BucketsResult{
		kind:   b.kind,
		mapper: b.mapper,
	}
	path := f.at("buckets")

	switch {
	case raw.IsArray():
		list := fragment{path: path, json: raw}
		for i, item := range raw.Array() {
			bf, err := newFragment(list.index(i), item)
			if err != nil {
				return nil, err
			}

			bucket := &Bucket{
				kind:         b.kind,
				FromAsString: bf.optionalString("from_as_string"),
				ToAsString:   bf.optionalString("to_as_string"),
				From:         bf.optionalFloat64("from"),
				To:           bf.optionalFloat64("to"),
				KeyAsString:  bf.optionalString("key_as_string"),
			}
			if key, ok := bf.member("key"); ok {
				bucket.Key = bucketKey(key)
			}

			if err := b.fillBucket(bf, bucket, extras); err != nil {
				return nil, err
			}
			r.Buckets = append(r.Buckets, bucket)
		}
	case raw.IsObject():
		raw.ForEach(func(k, v gjson.Result) bool {
			var bf fragment
			if bf, err = newFragment(path+"."+k.String(), v); err != nil {
				return false
			}

			bucket := &Bucket{
				kind:        b.kind,
				Key:         k.String(),
				KeyAsString: bf.optionalString("key_as_string"),
			}
			if err = b.fillBucket(bf, bucket, extras); err != nil {
				return false
			}
			r.Buckets = append(r.Buckets, bucket)
			return true
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(ErrInvalidResponse, "%s: expected array or object, got %s", path, raw.Type)
	}

	return r, nil
}

func (b *base) fillBucket(f fragment, bucket *Bucket, extras bucketExtras) error {
	count, err := f.int64("doc_count")
	if err != nil {
		return err
	}
	bucket.DocCount = count

	if extras != nil {
		if err := extras(f, bucket); err != nil {
			return err
		}
	}

	subs, err := b.subs.process(f)
	if err != nil {
		return err
	}
	bucket.subResults = subs

	return nil
}

// bucketKey keeps integral numbers as int64 and everything else as the
// closest Go value of the JSON literal.
func bucketKey(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		return v.Str
	case gjson.Number:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return i
		}
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	default:
		return v.Value()
	}
}
