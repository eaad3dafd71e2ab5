// Package testutil holds helpers shared by race and integration tests.
package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

// ConcurrentResult counts how racing operations ended. A decision race is
// expected to end with one success and the rest as conflicts or not-founds.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	NotFounds int32
	Errors    int32

	mu         sync.Mutex
	unexpected []error
}

// Total returns how many operations ran.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.NotFounds + r.Errors
}

// Unexpected returns the errors counted under Errors, for failure messages.
func (r *ConcurrentResult) Unexpected() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.unexpected...)
}

// RunConcurrent starts n goroutines and releases them together so they contend
// on the same claim. Lost decision races and store conflicts count as
// Conflicts; missing claims and failed preconditions count as NotFounds.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	result := &ConcurrentResult{}
	var successes, conflicts, notFounds, errs atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch err := fn(i); {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeDecisionConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
				result.mu.Lock()
				result.unexpected = append(result.unexpected, err)
				result.mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	result.Successes = successes.Load()
	result.Conflicts = conflicts.Load()
	result.NotFounds = notFounds.Load()
	result.Errors = errs.Load()
	return result
}
