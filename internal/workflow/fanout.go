package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrConcurrencyBudget is returned when a fan-out is configured with a
// concurrency cap that cannot admit any item.
var ErrConcurrencyBudget = errors.New("concurrency budget exceeded")

// ItemError reports the first item failure of a fan-out along with the
// item's position in the input sequence.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d failed: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// MapExecute runs body once per item with at most maxConcurrent invocations
// in flight at any instant. As one invocation completes, the next pending
// item is admitted.
//
// If aggregate is true the returned slice holds one output per item in the
// original item order, not completion order. If aggregate is false the
// outputs are discarded and the returned slice is nil; the call still waits
// for every admitted item to reach a terminal state.
//
// Failure is fail-fast: the first item error wins and is returned wrapped in
// ItemError. Pending items are not admitted after a failure, but in-flight
// invocations are allowed to finish naturally rather than being cancelled.
func MapExecute[T, R any](ctx context.Context, items []T, maxConcurrent int, aggregate bool, body func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("%w: maxConcurrent must be at least 1, got %d", ErrConcurrencyBudget, maxConcurrent)
	}

	var (
		sem      = semaphore.NewWeighted(int64(maxConcurrent))
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		results  []R
	)

	if aggregate {
		results = make([]R, len(items))
	}

	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for i, item := range items {
		if failed() {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			fail(err)
			break
		}

		if failed() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(index int, item T) {
			defer wg.Done()
			defer sem.Release(1)

			output, err := body(ctx, item)
			if err != nil {
				fail(&ItemError{Index: index, Err: err})
				return
			}
			if aggregate {
				results[index] = output
			}
		}(i, item)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if !aggregate {
		return nil, nil
	}
	return results, nil
}
