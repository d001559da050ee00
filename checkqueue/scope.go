// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkqueue

// QueueScope wraps a ParallelCheckQueue for the lifetime of a single
// batch-series and guarantees Wait is issued exactly once for it, even if
// the caller never calls Wait explicitly. Go has no destructors, so the
// guarantee is enforced the way a database transaction's Rollback is:
// callers must defer scope.Release() immediately after NewScope returns.
//
//	scope := queue.NewScope()
//	defer scope.Release()
//	scope.Add(batch)
//	if !scope.Wait() {
//	    // a predicate in this series returned false
//	}
type QueueScope[T Predicate] struct {
	queue  *ParallelCheckQueue[T]
	waited bool
}

// NewScope opens a batch-series on q. Only one scope should be open on a
// given queue at a time. NewScope does not check this: batches added
// through two open scopes join the same batch-series, which the first Wait
// or Release on either scope ends.
func (q *ParallelCheckQueue[T]) NewScope() *QueueScope[T] {
	return &QueueScope[T]{queue: q}
}

// Add forwards batch to the underlying queue. Calling Add after Wait or
// Release has run on this scope panics with ErrQueueMisuse.
func (s *QueueScope[T]) Add(batch []T) {
	if s.waited {
		panic(ErrQueueMisuse)
	}
	s.queue.Add(batch)
}

// Wait ends the batch-series and returns the underlying queue's result.
// Calling Wait a second time on the same scope panics with ErrQueueMisuse;
// use Release, not a second Wait, if the call site is unsure whether Wait
// already ran.
func (s *QueueScope[T]) Wait() bool {
	if s.waited {
		panic(ErrQueueMisuse)
	}
	s.waited = true
	return s.queue.Wait()
}

// Release ends the batch-series if it has not already ended, discarding the
// result. It is the drop-path counterpart to Wait: deferring it immediately
// after NewScope guarantees no batch added through this scope outlives the
// scope itself, regardless of which return path the caller takes. Calling
// Release after Wait has already run is a safe no-op.
func (s *QueueScope[T]) Release() {
	if s.waited {
		return
	}
	s.waited = true
	s.queue.Wait()
}
