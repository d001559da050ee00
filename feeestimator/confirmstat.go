// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeestimator

import (
	"io"
	"sort"
)

// minBuckets and maxBuckets bound the number of fee/priority buckets a
// TxConfirmStat may track. maxConfirmsCap bounds how many confirmation
// ranges it may track, one week of 10-minute blocks.
const (
	minBuckets     = 2
	maxBuckets     = 1000
	maxConfirmsCap = 1008
)

// TxConfirmStat tracks, for one category of transaction (fee-rate or
// priority), how long it has historically taken transactions in each value
// bucket to confirm. Buckets are ordered, half-open ranges identified by
// their upper bound; a value lands in the lowest bucket whose upper bound is
// strictly greater than the value, saturating into the top bucket if the
// value is at or above every real bound.
//
// TxConfirmStat is not safe for concurrent use; callers must serialize
// access (record/clear/update/estimate are all single-writer operations in
// the policy estimator that owns this stat).
type TxConfirmStat struct {
	// label is used only in human-readable output (DumpBuckets, log lines).
	label string

	// buckets holds the ascending upper bounds, buckets[len-1] is the
	// sentinel top bucket.
	buckets []float64

	decay float64

	// confAvg[y][x] is the decayed EMA of the count of txs in bucket x that
	// confirmed within y+1 blocks. Dimensions are maxConfirms x len(buckets).
	confAvg [][]float64

	// txCtAvg[x] is the decayed EMA of the count of txs sampled into bucket x.
	txCtAvg []float64

	// avg[x] is the decayed EMA of the summed value (fee or priority) of
	// txs sampled into bucket x.
	avg []float64

	// curBlockConf, curBlockTxCt, curBlockVal are the non-decayed
	// accumulators for the block currently being assembled. They hold data
	// only between ClearCurrent and UpdateMovingAverages.
	curBlockConf [][]float64
	curBlockTxCt []float64
	curBlockVal  []float64
}

// NewTxConfirmStat allocates a TxConfirmStat with all tables zeroed.
// buckets must be strictly increasing and have at least 2 entries;
// maxConfirms must be at least 1 and at most 1008; decay must be strictly
// between 0 and 1.
func NewTxConfirmStat(buckets []float64, maxConfirms int, decay float64, label string) (*TxConfirmStat, error) {
	if err := validateBuckets(buckets); err != nil {
		return nil, err
	}
	if maxConfirms < 1 || maxConfirms > maxConfirmsCap {
		return nil, corruptf("max confirms %d outside [1, %d]", maxConfirms, maxConfirmsCap)
	}
	if decay <= 0 || decay >= 1 {
		return nil, corruptf("decay %f outside (0, 1)", decay)
	}

	k := len(buckets)
	s := &TxConfirmStat{
		label:   label,
		buckets: append([]float64(nil), buckets...),
		decay:   decay,
	}
	s.confAvg = make2D(maxConfirms, k)
	s.curBlockConf = make2D(maxConfirms, k)
	s.txCtAvg = make([]float64, k)
	s.curBlockTxCt = make([]float64, k)
	s.avg = make([]float64, k)
	s.curBlockVal = make([]float64, k)
	return s, nil
}

func make2D(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func validateBuckets(buckets []float64) error {
	if len(buckets) < minBuckets || len(buckets) > maxBuckets {
		return corruptf("bucket count %d outside [%d, %d]", len(buckets), minBuckets, maxBuckets)
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return corruptf("bucket upper bounds are not strictly increasing at index %d", i)
		}
	}
	return nil
}

// MaxConfirms returns the number of confirmation ranges tracked.
func (s *TxConfirmStat) MaxConfirms() int {
	return len(s.confAvg)
}

// Buckets returns the bucket upper bounds. The returned slice must not be
// modified by the caller.
func (s *TxConfirmStat) Buckets() []float64 {
	return s.buckets
}

// bucketIndex returns the least index i such that v < buckets[i], saturating
// into the top bucket when v is at or above every real bound. Lookup uses
// ordered-map (strict-upper-bound) semantics, not equality, which is
// load-bearing for correct classification.
func (s *TxConfirmStat) bucketIndex(v float64) int {
	i := sort.Search(len(s.buckets), func(i int) bool { return v < s.buckets[i] })
	if i >= len(s.buckets) {
		i = len(s.buckets) - 1
	}
	return i
}

// ClearCurrent zeros every cur-block accumulator in preparation for a new
// block. Dimensions are unchanged. Calling it twice in a row is equivalent
// to calling it once.
func (s *TxConfirmStat) ClearCurrent() {
	for y := range s.curBlockConf {
		for x := range s.curBlockConf[y] {
			s.curBlockConf[y][x] = 0
		}
	}
	for x := range s.curBlockTxCt {
		s.curBlockTxCt[x] = 0
		s.curBlockVal[x] = 0
	}
}

// Record adds one sample to the current block's accumulators. blocksToConfirm
// must be at least 1; lower values are silently ignored.
func (s *TxConfirmStat) Record(blocksToConfirm int, v float64) {
	if blocksToConfirm < 1 {
		return
	}
	x := s.bucketIndex(v)
	maxConfirms := len(s.curBlockConf)
	for y := blocksToConfirm - 1; y < maxConfirms; y++ {
		s.curBlockConf[y][x]++
	}
	s.curBlockTxCt[x]++
	s.curBlockVal[x] += v
}

// UpdateMovingAverages folds the current block's accumulators into the
// decayed moving averages. It must be called exactly once per block, after
// all of that block's samples have been Record-ed.
func (s *TxConfirmStat) UpdateMovingAverages() {
	for y := range s.confAvg {
		for x := range s.confAvg[y] {
			s.confAvg[y][x] = s.confAvg[y][x]*s.decay + s.curBlockConf[y][x]
		}
	}
	for x := range s.txCtAvg {
		s.txCtAvg[x] = s.txCtAvg[x]*s.decay + s.curBlockTxCt[x]
		s.avg[x] = s.avg[x]*s.decay + s.curBlockVal[x]
	}
}

// EstimateMedian returns the estimated median value for confirmation within
// target blocks, given a caller must see at least sufficientTx/(1-decay)
// effective samples in a bucket window before trusting its success rate, and
// that rate must be at least minSuccess. It returns -1 if no bucket window
// ever reached the required sample count and success rate, or if the
// winning window has no samples to derive a median from.
//
// Callers must not invoke this with target outside [1, s.MaxConfirms()];
// BlockPolicyEstimator enforces that before calling in.
func (s *TxConfirmStat) EstimateMedian(target int, sufficientTx, minSuccess float64) float64 {
	confirmRangeIdx := target - 1
	threshold := sufficientTx / (1 - s.decay)

	top := len(s.buckets) - 1
	curLow, curHigh := top, top
	bestLow, bestHigh := top, top
	foundAnswer := false

	var nConf, total float64
	for bucket := top; bucket >= 0; bucket-- {
		curLow = bucket
		nConf += s.confAvg[confirmRangeIdx][bucket]
		total += s.txCtAvg[bucket]

		if total < threshold {
			continue
		}

		rate := nConf / total
		if rate < minSuccess {
			break
		}

		foundAnswer = true
		bestLow, bestHigh = curLow, curHigh
		nConf, total = 0, 0
		curHigh = bucket - 1
	}

	if !foundAnswer {
		return -1
	}

	var txSum float64
	for j := bestLow; j <= bestHigh; j++ {
		txSum += s.txCtAvg[j]
	}
	if txSum == 0 {
		return -1
	}

	txSum /= 2
	for j := bestLow; j <= bestHigh; j++ {
		if s.txCtAvg[j] < txSum {
			txSum -= s.txCtAvg[j]
			continue
		}
		return s.avg[j] / s.txCtAvg[j]
	}

	return -1
}

// Serialize writes the stat in the modern, version-agnostic layout: decay,
// buckets, avg, txCtAvg, then an outer length-prefixed sequence of
// length-prefixed confAvg rows. BlockPolicyEstimator.Serialize always writes
// this layout; legacy layouts are only ever read, never written.
func (s *TxConfirmStat) Serialize(w io.Writer) error {
	if err := writeFloat64(w, s.decay); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, s.buckets); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, s.avg); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, s.txCtAvg); err != nil {
		return err
	}
	if err := writeVarUint(w, uint64(len(s.confAvg))); err != nil {
		return err
	}
	for _, row := range s.confAvg {
		if err := writeFloat64Slice(w, row); err != nil {
			return err
		}
	}
	return nil
}

// deserializeTxConfirmStat reads a TxConfirmStat in either the legacy
// (version < 100000) or modern on-disk layout and returns a brand new
// instance. It never mutates an existing TxConfirmStat: any validation
// failure aborts with a CorruptEstimatesFileError before anything is kept.
func deserializeTxConfirmStat(r io.Reader, version int32, label string) (*TxConfirmStat, error) {
	decay, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	if decay <= 0 || decay >= 1 {
		return nil, corruptf("decay %f outside (0, 1)", decay)
	}

	legacy := version < legacyVersionThreshold

	var legacyMaxConfirms uint64
	if legacy {
		legacyMaxConfirms, err = readUint64(r)
		if err != nil {
			return nil, err
		}
	}

	buckets, err := readFloat64Slice(r, maxBuckets)
	if err != nil {
		return nil, err
	}
	if err := validateBuckets(buckets); err != nil {
		return nil, err
	}
	k := len(buckets)

	avg, err := readFloat64SliceExact(r, k)
	if err != nil {
		return nil, err
	}
	txCtAvg, err := readFloat64SliceExact(r, k)
	if err != nil {
		return nil, err
	}

	var confAvg [][]float64
	if legacy {
		if legacyMaxConfirms < 1 || legacyMaxConfirms > maxConfirmsCap {
			return nil, corruptf("max confirms %d outside [1, %d]", legacyMaxConfirms, maxConfirmsCap)
		}
		confAvg = make([][]float64, legacyMaxConfirms)
		for i := range confAvg {
			row, err := readFloat64SliceExact(r, k)
			if err != nil {
				return nil, err
			}
			confAvg[i] = row
		}
	} else {
		rowCount, err := readVarUint(r)
		if err != nil {
			return nil, err
		}
		if rowCount < 1 || rowCount > maxConfirmsCap {
			return nil, corruptf("max confirms %d outside [1, %d]", rowCount, maxConfirmsCap)
		}
		confAvg = make([][]float64, rowCount)
		for i := range confAvg {
			row, err := readFloat64SliceExact(r, k)
			if err != nil {
				return nil, err
			}
			confAvg[i] = row
		}
	}

	s := &TxConfirmStat{
		label:        label,
		buckets:      buckets,
		decay:        decay,
		confAvg:      confAvg,
		txCtAvg:      txCtAvg,
		avg:          avg,
		curBlockConf: make2D(len(confAvg), k),
		curBlockTxCt: make([]float64, k),
		curBlockVal:  make([]float64, k),
	}
	return s, nil
}
