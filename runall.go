package asyncrt

import (
	"context"
	"errors"
)

// RunAll submits every fn (see NewTask for accepted signatures) to the
// default runtime and waits for all of them.
//
// Semantics:
// - Values are returned in submission order.
// - Failed tasks contribute a zero value; the returned error is errors.Join
//   of all task errors (nil when every task succeeded).
func RunAll[R any](fns []interface{}, opts ...TaskOption) ([]R, error) {
	results := make([]*Result[R], 0, len(fns))
	for _, fn := range fns {
		r, err := Async[R](fn, opts...)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return AwaitAll(results)
}

// AwaitAll blocks until every result is terminal and gathers the values in
// input order, joining the errors.
func AwaitAll[R any](results []*Result[R]) ([]R, error) {
	values := make([]R, len(results))
	var errs []error
	for i, r := range results {
		v, err := r.Get()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}

// ForEach applies fn to each item concurrently on the default runtime and
// returns the aggregated error (errors.Join) or nil when all succeed.
func ForEach[T any](items []T, fn func(item T) error, opts ...TaskOption) error {
	if len(items) == 0 {
		return nil
	}
	results := make([]*Result[Void], 0, len(items))
	for i := range items {
		item := items[i] // capture
		r, err := Async[Void](func(_ context.Context) error { return fn(item) }, opts...)
		if err != nil {
			return err
		}
		results = append(results, r)
	}
	_, err := AwaitAll(results)
	return err
}
