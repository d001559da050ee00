// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeestimator

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// codecProtocolVersion is passed to wire's variable-length integer helpers.
// It has no meaning for this package's own on-disk format; it only selects
// which wire encoding revision ReadVarInt/WriteVarInt use, and the current
// encoding has been stable across every protocol version this package
// cares about.
const codecProtocolVersion = 0

// CorruptEstimatesFileError is returned by DeserializeBlockPolicyEstimator
// (and deserializeTxConfirmStat) when the byte stream fails a structural or
// value-range check. The caller decides whether to reinitialize the
// estimator; no existing estimator is modified.
type CorruptEstimatesFileError struct {
	Reason string
}

func (e *CorruptEstimatesFileError) Error() string {
	return fmt.Sprintf("corrupt estimates file: %s", e.Reason)
}

func corruptf(format string, args ...interface{}) error {
	return &CorruptEstimatesFileError{Reason: fmt.Sprintf(format, args...)}
}

func writeInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeFloat64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readFloat64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// readUint64 reads a raw, fixed-width 8-byte uint64 (not a varint). The
// legacy on-disk layout's max_confirms field is encoded this way.
func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// writeFloat64Slice writes a length-prefixed vector of float64s using the
// same variable-length integer convention the rest of the btcsuite wire
// protocol uses for vector lengths.
func writeFloat64Slice(w io.Writer, vals []float64) error {
	if err := wire.WriteVarInt(w, codecProtocolVersion, uint64(len(vals))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vals)
}

// readFloat64Slice reads a length-prefixed vector of float64s, refusing to
// allocate an unreasonable amount of memory for a malformed length prefix.
func readFloat64Slice(r io.Reader, maxLen uint64) ([]float64, error) {
	n, err := wire.ReadVarInt(r, codecProtocolVersion)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, corruptf("vector length %d exceeds maximum of %d", n, maxLen)
	}
	vals := make([]float64, n)
	if n == 0 {
		return vals, nil
	}
	if err := binary.Read(r, binary.LittleEndian, vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// readFloat64SliceExact reads a length-prefixed vector of float64s and
// requires it to have exactly wantLen elements.
func readFloat64SliceExact(r io.Reader, wantLen int) ([]float64, error) {
	vals, err := readFloat64Slice(r, uint64(wantLen)+1)
	if err != nil {
		return nil, err
	}
	if len(vals) != wantLen {
		return nil, corruptf("vector has %d elements, expected %d", len(vals), wantLen)
	}
	return vals, nil
}

func writeVarUint(w io.Writer, v uint64) error {
	return wire.WriteVarInt(w, codecProtocolVersion, v)
}

func readVarUint(r io.Reader) (uint64, error) {
	return wire.ReadVarInt(r, codecProtocolVersion)
}
