/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bloom implements a bit-array Bloom filter with k independent
// hash lanes derived from a single murmur3-x64-128 call via double
// hashing, wire-compatible with the Apache DataSketches reference
// serialization. It is adapted from the teacher's bloom/bloom.go counting
// bloom filter, generalized from 4-bit saturating counters to single bits
// and from a fixed row count to a configurable (m, k, seed) triple.
package bloom

import (
	"fmt"
	"math"
	"math/bits"

	datasketches "github.com/dgraph-io/datasketches-go"
)

const (
	familyID      byte = 21
	serialVersion byte = 1

	flagEmpty byte = 0x04

	minCapacityBits uint64 = 64
	maxCapacityBits uint64 = (1 << 35) - 64
)

// Filter is a bit-array Bloom filter. It owns its backing words exclusively;
// Union/Intersect/Invert mutate in place and recompute NumBitsSet by
// popcount, per spec.md's invariant that num_bits_set always equals the
// popcount of the bit array.
type Filter struct {
	capacityBits uint64 // m
	numHashes    uint16 // k
	seed         uint64
	words        []uint64
	numBitsSet   uint64
	metrics      *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this filter's Insert/ContainsAndInsert/Union/Intersect calls. Passing nil
// disables instrumentation.
func (f *Filter) SetMetrics(m *datasketches.Metrics) { f.metrics = m }

// NewFilter constructs an empty Filter with capacityBits bits, numHashes
// hash lanes and the given murmur3 seed. capacityBits must lie in
// [64, 2^35-64]; numHashes must be nonzero.
func NewFilter(capacityBits uint64, numHashes uint16, seed uint64) (*Filter, error) {
	if capacityBits < minCapacityBits || capacityBits > maxCapacityBits {
		return nil, datasketches.NewInvalidArgument(
			"capacity_bits %d out of range [%d, %d]", capacityBits, minCapacityBits, maxCapacityBits)
	}
	if numHashes == 0 {
		return nil, datasketches.NewInvalidArgument("num_hashes must be > 0")
	}
	return &Filter{
		capacityBits: capacityBits,
		numHashes:    numHashes,
		seed:         seed,
		words:        make([]uint64, wordsFor(capacityBits)),
	}, nil
}

func wordsFor(m uint64) uint64 {
	return (m + 63) / 64
}

// CapacityBits returns m, the number of bits in the filter.
func (f *Filter) CapacityBits() uint64 { return f.capacityBits }

// NumHashes returns k, the number of hash lanes per operation.
func (f *Filter) NumHashes() uint16 { return f.numHashes }

// Seed returns the murmur3 seed this filter hashes with.
func (f *Filter) Seed() uint64 { return f.seed }

// NumBitsSet returns the number of set bits, maintained incrementally.
func (f *Filter) NumBitsSet() uint64 { return f.numBitsSet }

// IsEmpty reports whether no bits are set.
func (f *Filter) IsEmpty() bool { return f.numBitsSet == 0 }

func (f *Filter) bitIndices(data []byte) (h1 uint64, idx []uint64) {
	p := datasketches.HashBytes(data, f.seed)
	idx = make([]uint64, f.numHashes)
	h1, h2 := p.H1, p.H2
	for i := uint16(0); i < f.numHashes; i++ {
		combined := h1 + uint64(i)*h2 // wrapping add/mul, then modulo
		idx[i] = combined % f.capacityBits
	}
	return h1, idx
}

func (f *Filter) getBit(bitIdx uint64) bool {
	return f.words[bitIdx/64]&(uint64(1)<<(bitIdx%64)) != 0
}

func (f *Filter) setBit(bitIdx uint64) (wasSet bool) {
	word := bitIdx / 64
	mask := uint64(1) << (bitIdx % 64)
	wasSet = f.words[word]&mask != 0
	if !wasSet {
		f.words[word] |= mask
		f.numBitsSet++
	}
	return wasSet
}

// Insert adds data to the filter.
func (f *Filter) Insert(data []byte) {
	h1, idx := f.bitIndices(data)
	for _, i := range idx {
		f.setBit(i)
	}
	f.metrics.RecordUpdate(h1)
}

// Contains reports whether all k bits for data are set. False negatives
// never occur; false positives occur at the rate given by EstimatedFPP.
func (f *Filter) Contains(data []byte) bool {
	_, idx := f.bitIndices(data)
	for _, i := range idx {
		if !f.getBit(i) {
			return false
		}
	}
	return true
}

// ContainsAndInsert atomically tests then sets membership of data,
// returning the membership state observed before this call.
func (f *Filter) ContainsAndInsert(data []byte) bool {
	h1, idx := f.bitIndices(data)
	wasMember := true
	for _, i := range idx {
		if !f.getBit(i) {
			wasMember = false
			break
		}
	}
	for _, i := range idx {
		f.setBit(i)
	}
	f.metrics.RecordUpdate(h1)
	return wasMember
}

// Reset zeroes every word and the bit counter.
func (f *Filter) Reset() {
	for i := range f.words {
		f.words[i] = 0
	}
	f.numBitsSet = 0
}

// checkCompatible panics if f and other cannot be combined. Union/Intersect
// compatibility is a precondition the caller controls at construction time,
// not a recoverable runtime error.
func (f *Filter) checkCompatible(other *Filter) {
	if f.capacityBits != other.capacityBits || f.numHashes != other.numHashes || f.seed != other.seed {
		panic(fmt.Sprintf(
			"bloom: incompatible filters: (m=%d,k=%d,seed=%d) vs (m=%d,k=%d,seed=%d)",
			f.capacityBits, f.numHashes, f.seed, other.capacityBits, other.numHashes, other.seed))
	}
}

// Union ORs other's bits into f in place. f and other must share identical
// (capacity_bits, num_hashes, seed); a mismatch panics.
func (f *Filter) Union(other *Filter) {
	f.checkCompatible(other)
	for i := range f.words {
		f.words[i] |= other.words[i]
	}
	f.recount()
	f.metrics.RecordMerge()
}

// Intersect ANDs other's bits into f in place. Same compatibility
// requirement as Union.
func (f *Filter) Intersect(other *Filter) {
	f.checkCompatible(other)
	for i := range f.words {
		f.words[i] &= other.words[i]
	}
	f.recount()
	f.metrics.RecordMerge()
}

// Invert flips every bit in place. Excess bits in the final word beyond
// capacityBits are masked off so they never register as set. Whether the
// false-positive guarantee still holds after inversion is open per
// spec.md's Open Questions; callers should treat an inverted filter as a
// raw bit-array view, not a membership structure with a known FPP.
func (f *Filter) Invert() {
	for i := range f.words {
		f.words[i] = ^f.words[i]
	}
	f.maskExcessBits()
	f.recount()
}

func (f *Filter) maskExcessBits() {
	rem := f.capacityBits % 64
	if rem == 0 {
		return
	}
	last := len(f.words) - 1
	mask := (uint64(1) << rem) - 1
	f.words[last] &= mask
}

func (f *Filter) recount() {
	var total uint64
	for _, w := range f.words {
		total += uint64(bits.OnesCount64(w))
	}
	f.numBitsSet = total
}

// EstimatedFPP returns (1 - exp(-k*load))^k where load is the fraction of
// bits currently set, the standard Bloom-filter false-positive estimate.
func (f *Filter) EstimatedFPP() float64 {
	load := float64(f.numBitsSet) / float64(f.capacityBits)
	inner := 1 - math.Exp(-float64(f.numHashes)*load)
	return math.Pow(inner, float64(f.numHashes))
}
