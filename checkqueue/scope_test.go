// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checkqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueScopeForwardsShortCircuit(t *testing.T) {
	q := New[predicate](4)
	scope := q.NewScope()
	defer scope.Release()

	batch := make([]predicate, 100)
	for i := range batch {
		i := i
		batch[i] = func() bool { return i != 42 }
	}
	scope.Add(batch)

	assert.False(t, scope.Wait())
}

func TestQueueScopeAddAfterWaitPanics(t *testing.T) {
	q := New[predicate](2)
	scope := q.NewScope()

	scope.Add([]predicate{func() bool { return true }})
	scope.Wait()

	assert.Panics(t, func() {
		scope.Add([]predicate{func() bool { return true }})
	})
}

func TestQueueScopeReleaseWithoutAddIsSafe(t *testing.T) {
	q := New[predicate](2)
	scope := q.NewScope()

	assert.NotPanics(t, func() {
		scope.Release()
	})
}
