// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package checkqueue provides ParallelCheckQueue, a fixed worker pool that
// evaluates large batches of independent boolean predicates concurrently
// and short-circuits the whole batch-series as soon as any predicate fails.
// It is the generic engine behind script/signature verification in a
// validating node: instead of checking every input of every transaction in
// a block one at a time, the caller adds them all to the queue in batches
// and calls Wait once. As soon as any predicate returns false, workers skip
// the predicates that remain and Wait returns false.
//
// A ParallelCheckQueue is created once, with a fixed worker count, and
// reused across many batch-series for the life of the process. QueueScope
// exists purely to make "exactly one Wait per series" a structural
// guarantee rather than a convention callers have to remember.
package checkqueue
