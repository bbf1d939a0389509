// Package taskgroup runs batches of independent tasks and joins every
// result, success or failure alike.
//
// Unlike errgroup's usual contract, a failing task never cancels its
// siblings: per-item failures are data, not reasons to abort the batch.
// Every result carries the generation of the batch that produced it, so
// callers that reload concurrently can recognise and discard joins from
// a batch that has been superseded.
package taskgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one task in a batch.
type Result[T any] struct {
	// Index identifies the task within the batch.
	Index int

	// Gen is the batch generation echoed from Collect.
	Gen int64

	// Value is the task's result when Err is nil.
	Value T

	// Err is the task's failure, nil on success.
	Err error
}

// Collect runs n tasks with at most limit in flight and returns all n
// results, indexed by task. Results are written by index, so joining is
// order-independent. A limit below 1 means no cap.
func Collect[T any](ctx context.Context, gen int64, limit, n int, task func(ctx context.Context, i int) (T, error)) []Result[T] {
	if n <= 0 {
		return nil
	}
	if limit < 1 || limit > n {
		limit = n
	}

	results := make([]Result[T], n)

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := task(ctx, i)
			results[i] = Result[T]{Index: i, Gen: gen, Value: v, Err: err}
			return nil
		})
	}
	// Task errors live in results; Wait only synchronises.
	_ = g.Wait()

	return results
}

// Failures returns the subset of results that carry an error.
func Failures[T any](results []Result[T]) []Result[T] {
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
