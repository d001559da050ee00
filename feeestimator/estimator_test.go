// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeestimator

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntry is a minimal MempoolEntry for exercising the estimator without
// pulling in a real mempool or transaction type.
type fakeEntry struct {
	height   int64
	fee      int64
	size     int64
	priority float64
	clear    bool
}

func (f fakeEntry) Height() int64              { return f.height }
func (f fakeEntry) Fee() int64                 { return f.fee }
func (f fakeEntry) TxSize() int64              { return f.size }
func (f fakeEntry) PriorityAt(_ int64) float64 { return f.priority }
func (f fakeEntry) WasClearAtEntry() bool      { return f.clear }

const minRelayFeeForTest = 1000.0

func TestEstimateFeeAndPriorityWithNoDataReturnSentinels(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	assert.Equal(t, 0.0, e.EstimateFee(5))
	assert.Equal(t, -1.0, e.EstimatePriority(5))
}

func TestEstimateFeeOutOfRangeTargetReturnsZero(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	assert.Equal(t, 0.0, e.EstimateFee(0))
	assert.Equal(t, 0.0, e.EstimateFee(MaxBlockConfirms+1))
	assert.Equal(t, -1.0, e.EstimatePriority(MaxBlockConfirms+5))
}

func TestProcessBlockBuildsAFeeEstimate(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	// 600 high-fee, low-priority transactions entered three blocks before
	// they confirm; all of them land in the same fee-rate bucket and all
	// confirm on schedule, so EstimateFee(3) should recover that exact
	// fee rate with a 100% observed success rate.
	const feeRate = 12115.0
	entries := make([]MempoolEntry, 0, 600)
	for i := 0; i < 600; i++ {
		entries = append(entries, fakeEntry{
			height:   97,
			fee:      int64(feeRate),
			size:     1000,
			priority: 0,
			clear:    true,
		})
	}

	e.ProcessBlock(100, entries)

	assert.Equal(t, int64(100), e.BestSeenHeight())
	assert.Equal(t, feeRate, e.EstimateFee(3))

	// Deeper than the estimator tracks.
	assert.Equal(t, 0.0, e.EstimateFee(30))
}

func TestProcessBlockIgnoresEntriesNotClearAtEntry(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	entries := []MempoolEntry{
		fakeEntry{height: 97, fee: 12115, size: 1000, priority: 0, clear: false},
	}
	e.ProcessBlock(100, entries)

	assert.Equal(t, 0.0, e.EstimateFee(3))
}

func TestProcessBlockRejectsReorgHeights(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	entries := make([]MempoolEntry, 0, 600)
	for i := 0; i < 600; i++ {
		entries = append(entries, fakeEntry{height: 97, fee: 12115, size: 1000, clear: true})
	}
	e.ProcessBlock(100, entries)
	before := e.EstimateFee(3)

	// A block at or below the best height ever seen is side-chain/reorg
	// noise and must be ignored outright, leaving state untouched.
	e.ProcessBlock(50, []MempoolEntry{
		fakeEntry{height: 10, fee: 999999, size: 1, clear: true},
	})
	e.ProcessBlock(100, []MempoolEntry{
		fakeEntry{height: 10, fee: 999999, size: 1, clear: true},
	})

	assert.Equal(t, int64(100), e.BestSeenHeight())
	assert.Equal(t, before, e.EstimateFee(3))
}

func TestEstimateFeeNonIncreasingInTarget(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	// Per block: 300 expensive transactions that confirm in one block and
	// 300 cheaper ones that take ten. With decay 0.998 the effective
	// sample count in each bucket passes the 1/(1-decay) threshold well
	// inside 40 blocks, so a 2-block target can only be satisfied by the
	// expensive bucket while a 15-block target is satisfied by the cheap
	// one. The required fee must not go up as patience grows.
	for height := int64(100); height < 140; height++ {
		entries := make([]MempoolEntry, 0, 600)
		for i := 0; i < 300; i++ {
			entries = append(entries, fakeEntry{height: height - 1, fee: 50000, size: 1000, clear: true})
			entries = append(entries, fakeEntry{height: height - 10, fee: 2000, size: 1000, clear: true})
		}
		e.ProcessBlock(height, entries)
	}

	fast := e.EstimateFee(2)
	slow := e.EstimateFee(15)
	require.Greater(t, fast, 0.0)
	require.Greater(t, slow, 0.0)
	assert.GreaterOrEqual(t, fast, slow)
	assert.InDelta(t, 50000.0, fast, 1.0)
	assert.InDelta(t, 2000.0, slow, 1.0)
}

func TestProcessTransactionDropsAmbiguousClassification(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	// High fee rate and high priority: ambiguous, neither stat should see it.
	entries := []MempoolEntry{
		fakeEntry{height: 97, fee: 12115, size: 1000, priority: MinPriorityVal + 1, clear: true},
	}
	e.ProcessBlock(100, entries)

	assert.Equal(t, 0.0, e.EstimateFee(3))
	assert.Equal(t, -1.0, e.EstimatePriority(3))
}

func TestDefaultFeeBucketsStraddle10000(t *testing.T) {
	buckets := defaultFeeBuckets()
	require.Len(t, buckets, 39)
	assert.Equal(t, 0.0, buckets[0])
	assert.Equal(t, 1e16, buckets[len(buckets)-1])

	// A fee rate of exactly 10000 must land in the bucket whose upper
	// bound is the smallest value strictly greater than 10000, not a
	// bucket bounded at 10000 itself. This holds by construction of
	// bucketIndex's strict-upper-bound search regardless of exactly
	// where floating-point accumulation places the ~10000 boundary.
	s, err := NewTxConfirmStat(buckets, 1, 0.5, "fee")
	require.NoError(t, err)
	idx := s.bucketIndex(10000)
	assert.Greater(t, buckets[idx], 10000.0)
}

func TestSerializeRoundTrip(t *testing.T) {
	e, err := NewBlockPolicyEstimator(minRelayFeeForTest)
	require.NoError(t, err)

	entries := make([]MempoolEntry, 0, 600)
	for i := 0; i < 600; i++ {
		entries = append(entries, fakeEntry{height: 97, fee: 12115, size: 1000, clear: true})
	}
	e.ProcessBlock(100, entries)

	var buf bytes.Buffer
	require.NoError(t, e.Serialize(&buf))

	got, err := DeserializeBlockPolicyEstimator(&buf, minRelayFeeForTest)
	require.NoError(t, err)

	assert.Equal(t, e.BestSeenHeight(), got.BestSeenHeight())
	assert.Equal(t, e.EstimateFee(3), got.EstimateFee(3))
}
