// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feeestimator buckets confirmed transactions by fee-rate and
// priority and maintains per-bucket decayed moving averages of confirmation
// latency, so that callers can ask "what fee/priority do I need for my
// transaction to confirm within N blocks with high probability?"
//
// BlockPolicyEstimator owns two TxConfirmStat instances, one for fee rate
// and one for priority, and drives both from ProcessBlock. Neither type is
// safe for concurrent access; callers must serialize all calls into a given
// estimator.
package feeestimator
