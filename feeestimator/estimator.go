// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeestimator

import (
	"fmt"
	"io"
	"math"

	"github.com/davecgh/go-spew/spew"
)

// Tunable-but-not-tuned constants matching the reference fee/priority
// classifier this package implements.
const (
	// MaxBlockConfirms is the deepest confirmation target the estimator
	// tracks; requests deeper than this get a failure sentinel.
	MaxBlockConfirms = 25

	// DefaultDecay is the default per-block EMA decay factor for both
	// tracked stats.
	DefaultDecay = 0.998

	// MinSuccessPct is the minimum fraction of sampled transactions that
	// must have confirmed within target for a bucket window to count as
	// a success.
	MinSuccessPct = 0.85

	// SufficientFeeTxs and SufficientPriTxs are the minimum effective
	// sample counts (scaled by 1/(1-decay)) a bucket window needs before
	// its success rate is trusted.
	SufficientFeeTxs = 1.0
	SufficientPriTxs = 0.1

	// MinPriorityVal is the priority value at or above which a transaction
	// is considered high-priority for classification purposes.
	MinPriorityVal = 1e8

	// legacyVersionThreshold is the version_required value at and above
	// which the modern (outer-length-prefixed confAvg) on-disk layout is
	// used; versions below it use the legacy layout with an explicit
	// max_confirms field and no outer confAvg length.
	legacyVersionThreshold = int32(100000)

	// currentVersion is both the version_required and version_written
	// this package produces. It is comfortably above legacyVersionThreshold
	// so every file this package writes uses the modern layout.
	currentVersion = int32(139900)
)

// feeCategory and priCategory classify a transaction's fee-rate and
// priority for the purpose of deciding which TxConfirmStat, if any, should
// record it.
type feeCategory int

const (
	feeZero feeCategory = iota
	feeLow
	feeHigh
)

type priCategory int

const (
	priLow priCategory = iota
	priHigh
)

// MempoolEntry is the contract BlockPolicyEstimator needs from a mempool
// transaction entry. The full mempool/transaction type is out of scope for
// this package; callers adapt their own entry type to this interface.
type MempoolEntry interface {
	// Height is the block height at which the transaction entered the
	// mempool.
	Height() int64

	// Fee is the absolute fee paid by the transaction, in the smallest
	// currency unit.
	Fee() int64

	// TxSize is the serialized size of the transaction, in bytes.
	TxSize() int64

	// PriorityAt returns the transaction's priority as of blockHeight.
	PriorityAt(blockHeight int64) float64

	// WasClearAtEntry reports whether the transaction had no unconfirmed
	// mempool ancestors when it entered the mempool. Only clear-at-entry
	// transactions are eligible for unbiased sampling.
	WasClearAtEntry() bool
}

// BlockPolicyEstimator buckets confirmed transactions by fee-rate and
// priority and answers "what value do I need so my transaction confirms
// within N blocks at probability P?" It is not safe for concurrent access;
// callers must serialize calls into it (this is an explicit design contract,
// not an oversight — see TxConfirmStat).
type BlockPolicyEstimator struct {
	bestSeenHeight int64
	minRelayFee    float64

	feeStats *TxConfirmStat
	priStats *TxConfirmStat
}

// NewBlockPolicyEstimator returns an empty estimator using the default fee
// and priority bucket layouts. minRelayFee is the fee rate (in the smallest
// currency unit per kilobyte) at or below which a transaction with a
// non-zero fee is classified as "low fee" rather than "high fee".
func NewBlockPolicyEstimator(minRelayFee float64) (*BlockPolicyEstimator, error) {
	feeStats, err := NewTxConfirmStat(defaultFeeBuckets(), MaxBlockConfirms, DefaultDecay, "FeeRate")
	if err != nil {
		return nil, err
	}
	priStats, err := NewTxConfirmStat(defaultPriorityBuckets(), MaxBlockConfirms, DefaultDecay, "Priority")
	if err != nil {
		return nil, err
	}
	return &BlockPolicyEstimator{
		minRelayFee: minRelayFee,
		feeStats:    feeStats,
		priStats:    priStats,
	}, nil
}

// defaultFeeBuckets returns the 39 fee-rate bucket upper bounds: a leading
// zero sentinel, then 37 values from 1000 up to about 1e6 spaced by a
// factor of 10^(1/12) per step, then a 1e16 sentinel top bucket.
func defaultFeeBuckets() []float64 {
	const spacing = 1.2115276586285881 // 10^(1/12)
	const count = 39

	buckets := make([]float64, 0, count)
	buckets = append(buckets, 0)

	f := 1000.0
	for len(buckets) < count-1 {
		buckets = append(buckets, f)
		f *= spacing
	}
	buckets = append(buckets, 1e16)
	return buckets
}

// defaultPriorityBuckets returns the 13 priority bucket upper bounds:
// 1e5..1e16 spaced by a factor of 10, plus a 1e99 sentinel.
func defaultPriorityBuckets() []float64 {
	buckets := make([]float64, 0, 13)
	for exp := 5; exp <= 16; exp++ {
		buckets = append(buckets, math.Pow(10, float64(exp)))
	}
	buckets = append(buckets, 1e99)
	return buckets
}

// BestSeenHeight returns the highest block height ever passed to
// ProcessBlock.
func (e *BlockPolicyEstimator) BestSeenHeight() int64 {
	return e.bestSeenHeight
}

// ProcessTransaction classifies entry into the fee or priority stat, or
// drops it if its classification is ambiguous. It is ignored outright
// unless entry.WasClearAtEntry() is true, and unless blockHeight is
// strictly greater than the height at which entry was first seen (a
// non-positive blocksToConfirm indicates a reorg anomaly).
func (e *BlockPolicyEstimator) ProcessTransaction(blockHeight int64, entry MempoolEntry) {
	if !entry.WasClearAtEntry() {
		return
	}

	blocksToConfirm := blockHeight - entry.Height()
	if blocksToConfirm <= 0 {
		return
	}

	fee := entry.Fee()
	feeRate := float64(fee) / float64(entry.TxSize()) * 1000
	pri := entry.PriorityAt(blockHeight)

	var fc feeCategory
	switch {
	case fee == 0:
		fc = feeZero
	case feeRate <= e.minRelayFee:
		fc = feeLow
	default:
		fc = feeHigh
	}

	pc := priHigh
	if pri < MinPriorityVal {
		pc = priLow
	}

	switch {
	case fc == feeHigh && pc == priLow:
		e.feeStats.Record(int(blocksToConfirm), feeRate)
	case fc == feeZero || (fc == feeLow && pc == priHigh):
		e.priStats.Record(int(blocksToConfirm), pri)
	default:
		// Ambiguous attribution (high,high) or (low,low); dropped.
		log.Tracef("Dropping ambiguous tx first seen at height %d "+
			"(feeRate=%.8f pri=%.8f)", entry.Height(), feeRate, pri)
	}
}

// ProcessBlock updates both stats with every transaction confirmed in the
// block at blockHeight. Blocks at or below the best height ever seen are
// ignored as side-chain or reorg noise.
func (e *BlockPolicyEstimator) ProcessBlock(blockHeight int64, entries []MempoolEntry) {
	if blockHeight <= e.bestSeenHeight {
		return
	}
	e.bestSeenHeight = blockHeight

	e.feeStats.ClearCurrent()
	e.priStats.ClearCurrent()

	for _, entry := range entries {
		e.ProcessTransaction(blockHeight, entry)
	}

	e.feeStats.UpdateMovingAverages()
	e.priStats.UpdateMovingAverages()

	log.Debugf("Updated fee/priority estimates at height %d from %d transactions",
		blockHeight, len(entries))
}

// EstimateFee returns the fee rate (in the smallest currency unit per
// kilobyte) needed for a transaction to confirm within target blocks with
// high probability, or 0 if target is out of range or there is
// insufficient data.
func (e *BlockPolicyEstimator) EstimateFee(target int) float64 {
	if target <= 0 || target > MaxBlockConfirms {
		return 0
	}
	m := e.feeStats.EstimateMedian(target, SufficientFeeTxs, MinSuccessPct)
	if m < 0 {
		return 0
	}
	return m
}

// EstimatePriority returns the priority needed for a transaction to confirm
// within target blocks with high probability, or -1 if target is out of
// range or there is insufficient data.
func (e *BlockPolicyEstimator) EstimatePriority(target int) float64 {
	if target <= 0 || target > MaxBlockConfirms {
		return -1
	}
	return e.priStats.EstimateMedian(target, SufficientPriTxs, MinSuccessPct)
}

// EstimateSmartFee is like EstimateFee, but if target itself has
// insufficient data it walks to deeper confirmation targets until it finds
// one that does (or exhausts MaxBlockConfirms). It returns the fee estimate
// and the target at which it was actually found.
func (e *BlockPolicyEstimator) EstimateSmartFee(target int) (fee float64, foundAt int) {
	if target < 1 {
		target = 1
	}
	for ; target <= MaxBlockConfirms; target++ {
		if fee := e.EstimateFee(target); fee > 0 {
			return fee, target
		}
	}
	return 0, MaxBlockConfirms
}

// DumpBuckets renders the fee stat's and then the priority stat's internal
// table as a human-readable string, for diagnostic purposes only. Each
// table has a header line, one line per bucket, and a spew dump of confAvg.
func (e *BlockPolicyEstimator) DumpBuckets() string {
	return dumpStat(e.feeStats) + dumpStat(e.priStats)
}

func dumpStat(s *TxConfirmStat) string {
	res := fmt.Sprintf("== %s ==\n          |", s.label)
	for c := 0; c < s.MaxConfirms(); c++ {
		res += fmt.Sprintf("   %9d|", c+1)
	}
	res += "\n"

	for x, bound := range s.buckets {
		res += fmt.Sprintf("%10.2f", bound)
		for c := 0; c < s.MaxConfirms(); c++ {
			pct := 0.0
			if s.txCtAvg[x] > 0 {
				pct = s.confAvg[c][x] / s.txCtAvg[x]
			}
			res += fmt.Sprintf("| %7.4f", pct)
		}
		res += "\n"
	}

	// The confAvg table is the densest structure in the estimator and the
	// hardest to eyeball as a %v dump; spew gives a stable, indexable
	// rendering for when the summary above isn't enough to spot a bug.
	res += spew.Sdump(s.confAvg)
	return res
}

// Serialize writes the estimator to w in the on-disk format: a version
// header, the best-seen height, then the fee stat and the priority stat in
// that order. It always writes the modern layout.
func (e *BlockPolicyEstimator) Serialize(w io.Writer) error {
	if err := writeInt32(w, currentVersion); err != nil {
		return err
	}
	if err := writeInt32(w, currentVersion); err != nil {
		return err
	}
	if err := writeInt32(w, int32(e.bestSeenHeight)); err != nil {
		return err
	}
	if err := e.feeStats.Serialize(w); err != nil {
		return err
	}
	return e.priStats.Serialize(w)
}

// DeserializeBlockPolicyEstimator reads an estimator previously written by
// Serialize, in either the legacy or modern layout depending on the version
// header found in the stream. minRelayFee is carried forward into the new
// estimator the same way it would be supplied to NewBlockPolicyEstimator;
// it is not itself part of the on-disk format.
//
// On any structural or value-range violation, it returns a
// *CorruptEstimatesFileError and no estimator.
func DeserializeBlockPolicyEstimator(r io.Reader, minRelayFee float64) (*BlockPolicyEstimator, error) {
	versionRequired, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if _, err := readInt32(r); err != nil { // version_written, informational only
		return nil, err
	}

	bestSeenHeight, err := readInt32(r)
	if err != nil {
		return nil, err
	}

	feeStats, err := deserializeTxConfirmStat(r, versionRequired, "FeeRate")
	if err != nil {
		return nil, err
	}
	priStats, err := deserializeTxConfirmStat(r, versionRequired, "Priority")
	if err != nil {
		return nil, err
	}

	return &BlockPolicyEstimator{
		bestSeenHeight: int64(bestSeenHeight),
		minRelayFee:    minRelayFee,
		feeStats:       feeStats,
		priStats:       priStats,
	}, nil
}
