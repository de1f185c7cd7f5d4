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

package cpc

import (
	datasketches "github.com/dgraph-io/datasketches-go"
	"github.com/dgraph-io/datasketches-go/shared"
)

const defaultSeed uint64 = 9001

// Sketch is a mutable CPC cardinality sketch.
type Sketch struct {
	lgK  uint8
	seed uint64
	k    uint32
	kxp  float64
	hip  float64

	numCoupons             uint32
	firstInterestingColumn uint8
	mergeFlag              bool

	sparse *pairTable
	// windowOffset is carried for wire-format fidelity with the real
	// sliding-window layout; this module never truncates the per-row
	// column to a narrow window (see DESIGN.md), so it always stays 0.
	windowOffset uint8
	dense        []uint8

	metrics *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update/Merge/promotion activity. Passing nil disables
// instrumentation.
func (s *Sketch) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch returns a Sketch with the given lg_k and the default seed.
func NewSketch(lgK uint8) *Sketch { return NewSketchWithSeed(lgK, defaultSeed) }

// NewSketchWithSeed returns a Sketch with the given lg_k and hash seed.
func NewSketchWithSeed(lgK uint8, seed uint64) *Sketch {
	if lgK < MinLgK || lgK > MaxLgK {
		panic("cpc: lg_k out of range")
	}
	k := uint32(1) << lgK
	return &Sketch{
		lgK:    lgK,
		seed:   seed,
		k:      k,
		kxp:    float64(k),
		sparse: newPairTable(5),
	}
}

// LgK returns the configured log2(k).
func (s *Sketch) LgK() uint8 { return s.lgK }

// NumCoupons returns the number of distinct (row, column) events recorded.
func (s *Sketch) NumCoupons() uint32 { return s.numCoupons }

// IsEmpty reports whether the sketch has never observed an item.
func (s *Sketch) IsEmpty() bool { return s.numCoupons == 0 }

// Update folds data into the sketch.
func (s *Sketch) Update(data []byte) {
	hp := datasketches.HashBytes(data, s.seed)
	s.updateFromHash(hp)
	s.metrics.RecordUpdate(hp.H1)
}

// UpdateUint64 is a convenience wrapper that hashes the little-endian byte
// representation of v.
func (s *Sketch) UpdateUint64(v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s.Update(buf[:])
}

func (s *Sketch) updateFromHash(hp datasketches.HashPair) {
	row := uint32(hp.H1) & (s.k - 1)
	col := clampCol(leadingZeros64(hp.H2))
	s.rowColUpdate(row, col)
}

func (s *Sketch) rowColUpdate(row uint32, col uint8) {
	if col < s.firstInterestingColumn {
		return
	}

	var oldCol uint8
	if s.dense != nil {
		oldCol = s.dense[row]
		if col > oldCol {
			s.dense[row] = col
		}
	} else {
		oldCol = s.sparse.upsert(row, col)
		if float64(s.sparse.numEntries)*denseThresholdDenominator > float64(s.k)*denseThresholdNumerator {
			s.promoteToDense()
		}
	}

	if col > oldCol {
		s.numCoupons++
		if !s.mergeFlag {
			s.hip += 2 * float64(s.k) / s.kxp
			s.kxp -= invPow2[oldCol] - invPow2[col]
		}
	}
}

func (s *Sketch) promoteToDense() {
	dense := make([]uint8, s.k)
	rows, cols := s.sparse.rowColPairs()
	for i, r := range rows {
		dense[r] = cols[i]
	}
	s.dense = dense
	s.sparse = nil
	s.metrics.RecordResize()
}

// Estimate returns the best cardinality estimate: HIP pre-merge, the
// closed-form ICON estimator once the sketch has absorbed a Merge.
func (s *Sketch) Estimate() float64 {
	if s.IsEmpty() {
		return 0
	}
	if s.mergeFlag {
		return shared.IconEstimate(int(s.lgK), uint64(s.numCoupons))
	}
	return s.hip
}

// LowerBound returns a lower confidence bound at the given standard-
// deviation multiple.
func (s *Sketch) LowerBound(kappa shared.NumStdDev) float64 {
	if s.IsEmpty() {
		return 0
	}
	if s.mergeFlag {
		lo, _ := shared.IconBounds(kappa, int(s.lgK), uint64(s.numCoupons), s.Estimate())
		return lo
	}
	lo, _ := shared.HipBounds(kappa, int(s.lgK), uint64(s.numCoupons), s.hip)
	return lo
}

// UpperBound returns an upper confidence bound at the given standard-
// deviation multiple.
func (s *Sketch) UpperBound(kappa shared.NumStdDev) float64 {
	if s.IsEmpty() {
		return 0
	}
	if s.mergeFlag {
		_, hi := shared.IconBounds(kappa, int(s.lgK), uint64(s.numCoupons), s.Estimate())
		return hi
	}
	_, hi := shared.HipBounds(kappa, int(s.lgK), uint64(s.numCoupons), s.hip)
	return hi
}

// rowMax returns, for every row with at least one recorded column, its
// current maximum column value — the representation Merge folds between
// two sketches.
func (s *Sketch) rowMax() ([]uint32, []uint8) {
	if s.dense != nil {
		rows := make([]uint32, 0, s.numCoupons)
		cols := make([]uint8, 0, s.numCoupons)
		for r, c := range s.dense {
			if c > 0 {
				rows = append(rows, uint32(r))
				cols = append(cols, c)
			}
		}
		return rows, cols
	}
	return s.sparse.rowColPairs()
}

// Merge folds other's coupon matrix into s by taking, per row, the
// larger of the two max-column values — the lossless CPC union. HIP
// becomes invalid for both operands afterward; spec.md section 4.8
// documents HIP as valid only in single-sketch mode, used pre-merge,
// with the composite/ICON estimator taking over post-merge.
func (s *Sketch) Merge(other *Sketch) {
	if s.lgK != other.lgK {
		panic("cpc: cannot merge sketches with different lg_k")
	}
	if s.seed != other.seed {
		panic("cpc: cannot merge sketches with different seeds")
	}
	rows, cols := other.rowMax()
	for i, r := range rows {
		col := cols[i]
		var oldCol uint8
		if s.dense != nil {
			oldCol = s.dense[r]
			if col > oldCol {
				s.dense[r] = col
			}
		} else {
			oldCol = s.sparse.upsert(r, col)
			if float64(s.sparse.numEntries)*denseThresholdDenominator > float64(s.k)*denseThresholdNumerator {
				s.promoteToDense()
			}
		}
		if col > oldCol {
			s.numCoupons++
		}
	}
	s.mergeFlag = true
	s.metrics.RecordMerge()
}
