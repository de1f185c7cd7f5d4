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

// Package countmin implements a Count-Min sketch: a d*w counter matrix with
// row-specific hash seeds that estimates item frequency from above. It is
// adapted from the teacher's root-package CM type (bloom.go's
// Count-Min-style cmRow), generalized from a single depth-1 4-bit-counter
// row built for LFU admission into a full d-row uint64 matrix with
// row-specific seeds, per spec.md section 4.4.
package countmin

import (
	"math"

	datasketches "github.com/dgraph-io/datasketches-go"
)

const (
	familyID      byte = 17
	serialVersion byte = 1
	flagEmpty     byte = 0x01
)

// Sketch is a d x w matrix of unsigned counters. update(x, c) increments one
// counter per row; estimate(x) takes the minimum across rows, which is
// always >= the true count (Count-Min never undercounts).
type Sketch struct {
	numHashes   uint16 // d
	numBuckets  uint32 // w
	seed        uint64
	rowSeeds    []uint64 // per-row seed derived from seed_hash(seed)
	counters    []uint64 // d*w, row-major
	totalWeight uint64
	metrics     *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge calls. Passing nil disables instrumentation.
func (s *Sketch) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch constructs an empty Count-Min sketch with d rows and w buckets
// per row, seeded from seed. d and w must both be nonzero.
func NewSketch(numHashes uint16, numBuckets uint32, seed uint64) (*Sketch, error) {
	if numHashes == 0 {
		return nil, datasketches.NewInvalidArgument("num_hashes must be > 0")
	}
	if numBuckets == 0 {
		return nil, datasketches.NewInvalidArgument("num_buckets must be > 0")
	}
	rowSeeds := make([]uint64, numHashes)
	seedHash := uint64(datasketches.SeedHash(seed))
	for i := range rowSeeds {
		rowSeeds[i] = datasketches.InternalHashU64(uint64(i), seedHash)
	}
	return &Sketch{
		numHashes:  numHashes,
		numBuckets: numBuckets,
		seed:       seed,
		rowSeeds:   rowSeeds,
		counters:   make([]uint64, uint64(numHashes)*uint64(numBuckets)),
	}, nil
}

// SuggestNumBuckets returns a w such that the additive error is at most
// relativeError * total_weight, following the standard Count-Min sizing
// rule w = ceil(e / relativeError).
func SuggestNumBuckets(relativeError float64) uint32 {
	return uint32(math.Ceil(math.E / relativeError))
}

// SuggestNumHashes returns a d such that the confidence of the error bound
// is at least confidence, following the standard rule d = ceil(ln(1/(1-confidence))).
func SuggestNumHashes(confidence float64) uint16 {
	return uint16(math.Ceil(math.Log(1 / (1 - confidence))))
}

func (s *Sketch) bucketForRow(row int, x []byte) uint32 {
	h := datasketches.HashBytes(x, s.seed).H1
	return uint32((s.rowSeeds[row] ^ h) % uint64(s.numBuckets))
}

// Update adds weight to every row's counter for x.
func (s *Sketch) Update(x []byte, weight uint64) {
	for row := 0; row < int(s.numHashes); row++ {
		bucket := s.bucketForRow(row, x)
		s.counters[uint32(row)*s.numBuckets+bucket] += weight
	}
	s.totalWeight += weight
	s.metrics.RecordUpdate(datasketches.HashBytes(x, s.seed).H1)
}

// Estimate returns the minimum counter across all rows for x, an upper bound
// on the true frequency.
func (s *Sketch) Estimate(x []byte) uint64 {
	var min uint64
	for row := 0; row < int(s.numHashes); row++ {
		bucket := s.bucketForRow(row, x)
		c := s.counters[uint32(row)*s.numBuckets+bucket]
		if row == 0 || c < min {
			min = c
		}
	}
	return min
}

// UpperBound returns Estimate(x) + epsilon*total_weight, where epsilon =
// e/numBuckets, the standard Count-Min error bound.
func (s *Sketch) UpperBound(x []byte) uint64 {
	epsilon := math.E / float64(s.numBuckets)
	bound := float64(s.Estimate(x)) + epsilon*float64(s.totalWeight)
	return uint64(math.Ceil(bound))
}

// TotalWeight returns the sum of all weights ever passed to Update.
func (s *Sketch) TotalWeight() uint64 { return s.totalWeight }

// NumHashes returns d.
func (s *Sketch) NumHashes() uint16 { return s.numHashes }

// NumBuckets returns w.
func (s *Sketch) NumBuckets() uint32 { return s.numBuckets }

// Seed returns the configured hash seed.
func (s *Sketch) Seed() uint64 { return s.seed }

// Merge adds other's counters into s in place. s and other must share
// identical (numHashes, numBuckets, seed).
func (s *Sketch) Merge(other *Sketch) error {
	if s.numHashes != other.numHashes || s.numBuckets != other.numBuckets || s.seed != other.seed {
		return datasketches.NewInvalidArgument(
			"incompatible count-min sketches: (d=%d,w=%d,seed=%d) vs (d=%d,w=%d,seed=%d)",
			s.numHashes, s.numBuckets, s.seed, other.numHashes, other.numBuckets, other.seed)
	}
	for i := range s.counters {
		s.counters[i] += other.counters[i]
	}
	s.totalWeight += other.totalWeight
	s.metrics.RecordMerge()
	return nil
}
