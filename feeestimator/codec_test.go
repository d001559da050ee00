// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeestimator

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLegacyStat hand-encodes the pre-100000 on-disk layout: decay, a raw
// fixed-width max_confirms, buckets/avg/txCtAvg as length-prefixed vectors,
// then exactly max_confirms length-prefixed confAvg rows with no outer
// sequence length in front of them.
func buildLegacyStat(t *testing.T, decay float64, buckets, avg, txCtAvg []float64, confAvg [][]float64) []byte {
	t.Helper()
	var buf bytes.Buffer

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, decay))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(confAvg))))

	writeVec := func(vals []float64) {
		require.NoError(t, wire.WriteVarInt(&buf, 0, uint64(len(vals))))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, vals))
	}
	writeVec(buckets)
	writeVec(avg)
	writeVec(txCtAvg)
	for _, row := range confAvg {
		writeVec(row)
	}

	return buf.Bytes()
}

func TestDeserializeTxConfirmStatLegacyLayout(t *testing.T) {
	buckets := []float64{1000, 2000, 1e18}
	avg := []float64{0, 4500, 0}
	txCtAvg := []float64{0, 3, 0}
	confAvg := [][]float64{
		{0, 3, 0},
		{0, 2, 0},
	}

	raw := buildLegacyStat(t, 0.5, buckets, avg, txCtAvg, confAvg)

	s, err := deserializeTxConfirmStat(bytes.NewReader(raw), legacyVersionThreshold-1, "legacy")
	require.NoError(t, err)

	assert.Equal(t, buckets, s.buckets)
	assert.Equal(t, avg, s.avg)
	assert.Equal(t, txCtAvg, s.txCtAvg)
	assert.Equal(t, confAvg, s.confAvg)
	assert.Equal(t, 1500.0, s.EstimateMedian(1, 1.0, 0.5))
}

func TestDeserializeTxConfirmStatRejectsTruncatedStream(t *testing.T) {
	_, err := deserializeTxConfirmStat(bytes.NewReader(nil), currentVersion, "test")
	require.Error(t, err)
}

func TestDeserializeTxConfirmStatRejectsOversizedVector(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFloat64(&buf, 0.5))
	require.NoError(t, wire.WriteVarInt(&buf, 0, maxBuckets+1))

	_, err := deserializeTxConfirmStat(&buf, currentVersion, "test")
	require.Error(t, err)
	var corrupt *CorruptEstimatesFileError
	assert.ErrorAs(t, err, &corrupt)
}
