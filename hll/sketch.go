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

package hll

import (
	"fmt"

	datasketches "github.com/dgraph-io/datasketches-go"
	"github.com/dgraph-io/datasketches-go/shared"
)

// curMode tracks where a Sketch sits on the List -> Set -> Array ladder.
// Only one of the corresponding fields below is non-nil at a time, the
// same tagged-variant-by-nilable-pointer shape the cpc package uses for
// its sparse/dense split.
type curMode uint8

const (
	modeList curMode = iota
	modeSet
	modeArray
)

// Sketch is a HyperLogLog cardinality estimator. It starts in list mode,
// promotes to an open-addressed set once the list holds more than
// listToSetFraction*k distinct coupons, and promotes again to a register
// array (of the requested HllType) past setToArrayFraction*k. Grounded on
// original_source/src/hll/sketch.rs's Mode enum and field layout; the
// promotion thresholds and the Update entry point are authored from
// spec.md section 4.9 because sketch.rs itself never defines an Update
// method and stubs out its Set/Array de/serialization (see DESIGN.md).
type Sketch struct {
	lgConfigK uint8
	tgtType   HllType
	seed      uint64
	mode      curMode

	list *list
	set  *hashSet
	a4   *array4
	a6   *array6
	a8   *array8

	metrics *datasketches.Metrics
}

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this sketch's Update and mode-promotion activity. Passing nil disables
// instrumentation.
func (s *Sketch) SetMetrics(m *datasketches.Metrics) { s.metrics = m }

// NewSketch creates an empty Sketch targeting tgtType with 2^lgConfigK
// registers once it promotes to array mode.
func NewSketch(lgConfigK uint8, tgtType HllType) *Sketch {
	return NewSketchWithSeed(lgConfigK, tgtType, defaultSeed)
}

func NewSketchWithSeed(lgConfigK uint8, tgtType HllType, seed uint64) *Sketch {
	if lgConfigK < MinLgK || lgConfigK > MaxLgK {
		panic(fmt.Sprintf("hll: lgConfigK %d out of range [%d, %d]", lgConfigK, MinLgK, MaxLgK))
	}
	return &Sketch{
		lgConfigK: lgConfigK,
		tgtType:   tgtType,
		seed:      seed,
		mode:      modeList,
		list:      newList(),
	}
}

func (s *Sketch) LgConfigK() uint8  { return s.lgConfigK }
func (s *Sketch) TargetType() HllType { return s.tgtType }

func (s *Sketch) IsEmpty() bool {
	switch s.mode {
	case modeList:
		return s.list.length() == 0
	case modeSet:
		return s.set.length() == 0
	default:
		return false
	}
}

// Update folds one item's hash into the sketch, promoting between modes
// as needed.
func (s *Sketch) Update(data []byte) {
	c := coupon(data, s.seed)
	s.updateCoupon(c)
	s.metrics.RecordUpdate(uint64(c))
}

func (s *Sketch) UpdateUint64(v uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s.Update(buf[:])
}

func (s *Sketch) updateCoupon(c uint32) {
	k := uint64(1) << s.lgConfigK
	switch s.mode {
	case modeList:
		s.list.update(c)
		if float64(s.list.length()) > listToSetFraction*float64(k) {
			s.promoteListToSet()
		}
	case modeSet:
		s.set.update(c)
		if float64(s.set.length()) > setToArrayFraction*float64(k) {
			s.promoteSetToArray()
		}
	case modeArray:
		slot, value := getSlot(c), getValue(c)
		s.updateArray(slot, value)
	}
}

func (s *Sketch) updateArray(slot uint32, value uint8) {
	slot &= uint32(1)<<s.lgConfigK - 1
	switch s.tgtType {
	case Hll4:
		s.a4.update(slot, value)
	case Hll6:
		s.a6.update(slot, value)
	default:
		s.a8.update(slot, value)
	}
}

func (s *Sketch) promoteListToSet() {
	old := s.list
	s.set = newSet()
	for _, c := range old.coupons() {
		s.set.update(c)
	}
	s.list = nil
	s.mode = modeSet
	s.metrics.RecordResize()
}

func (s *Sketch) promoteSetToArray() {
	old := s.set
	s.allocateArray()
	for _, c := range old.coupons() {
		slot, value := getSlot(c), getValue(c)
		s.updateArray(slot, value)
	}
	s.set = nil
	s.mode = modeArray
	s.metrics.RecordResize()
}

func (s *Sketch) allocateArray() {
	switch s.tgtType {
	case Hll4:
		s.a4 = newArray4(s.lgConfigK)
	case Hll6:
		s.a6 = newArray6(s.lgConfigK)
	default:
		s.a8 = newArray8(s.lgConfigK)
	}
}

// Estimate returns the current cardinality estimate.
func (s *Sketch) Estimate() float64 {
	switch s.mode {
	case modeList:
		return s.list.estimate()
	case modeSet:
		return s.set.estimate()
	default:
		return s.arrayEstimate()
	}
}

func (s *Sketch) arrayEstimate() float64 {
	switch s.tgtType {
	case Hll4:
		return s.a4.estimate()
	case Hll6:
		return s.a6.estimate()
	default:
		return s.a8.estimate()
	}
}

// UpperBound returns an estimate upper bound at numStdDev standard
// deviations, using the List/Set coupon-collector bound near zero and the
// asymptotic HIP relative standard error (shared.RelativeStandardError)
// once in array mode, mirroring cpc.Sketch's HIP/ICON bound split.
func (s *Sketch) UpperBound(numStdDev shared.NumStdDev) float64 {
	kappa := shared.KappaValue(numStdDev)
	switch s.mode {
	case modeList:
		return s.list.upperBound(kappa)
	case modeSet:
		return s.set.upperBound(kappa)
	default:
		_, upper := shared.Bounds(numStdDev, s.arrayEstimate(), shared.RelativeStandardError(int(s.lgConfigK)), 0)
		return upper
	}
}

func (s *Sketch) LowerBound(numStdDev shared.NumStdDev) float64 {
	switch s.mode {
	case modeList:
		return s.list.lowerBound(shared.KappaValue(numStdDev))
	case modeSet:
		return s.set.lowerBound(shared.KappaValue(numStdDev))
	default:
		lower, _ := shared.Bounds(numStdDev, s.arrayEstimate(), shared.RelativeStandardError(int(s.lgConfigK)), 0)
		return lower
	}
}

// markOutOfOrder flips every populated array's HIP estimator into
// composite mode, used once a sketch's state no longer reflects strictly
// in-order updates (after a merge). Deserialization does not call it; it
// restores the serialized out-of-order flag instead.
func (s *Sketch) markOutOfOrder() {
	switch s.mode {
	case modeArray:
		switch s.tgtType {
		case Hll4:
			s.a4.est.setOutOfOrder()
		case Hll6:
			s.a6.est.setOutOfOrder()
		default:
			s.a8.est.setOutOfOrder()
		}
	}
}
