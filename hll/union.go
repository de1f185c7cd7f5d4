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

import datasketches "github.com/dgraph-io/datasketches-go"

// Union accumulates the union of many Sketches into a single internal
// Hll8 "gadget" held at the union's configured precision, and can later
// emit the combined estimate or a result Sketch of any target type.
// Grounded on original_source/src/hll/union.rs.
type Union struct {
	lgMaxK uint8
	seed   uint64
	gadget *Sketch
}

func NewUnion(lgMaxK uint8) *Union {
	return NewUnionWithSeed(lgMaxK, defaultSeed)
}

func NewUnionWithSeed(lgMaxK uint8, seed uint64) *Union {
	if lgMaxK < MinLgK || lgMaxK > MaxLgK {
		panic("hll: lgMaxK out of range")
	}
	return &Union{
		lgMaxK: lgMaxK,
		seed:   seed,
		gadget: NewSketchWithSeed(lgMaxK, Hll8, seed),
	}
}

func (u *Union) LgMaxK() uint8     { return u.lgMaxK }
func (u *Union) LgConfigK() uint8  { return u.gadget.lgConfigK }
func (u *Union) Estimate() float64 { return u.gadget.Estimate() }

// SetMetrics attaches m as the optional ambient instrumentation sink for
// this union's gadget. Passing nil disables instrumentation.
func (u *Union) SetMetrics(m *datasketches.Metrics) { u.gadget.metrics = m }

func (u *Union) Reset() {
	metrics := u.gadget.metrics
	u.gadget = NewSketchWithSeed(u.lgMaxK, Hll8, u.seed)
	u.gadget.metrics = metrics
}

// Update merges other into the union's gadget. List/Set source sketches
// replay their raw coupons through the gadget's normal update path (which
// lets the gadget itself decide whether to promote); array-mode sources
// are merged register by register, downsizing the gadget first if the
// incoming sketch was configured at a smaller lg_k. Grounded on
// union.rs's HllUnion::update dispatch.
func (u *Union) Update(other *Sketch) {
	if other == nil || other.IsEmpty() {
		return
	}
	defer u.gadget.metrics.RecordMerge()

	switch other.mode {
	case modeList:
		for _, c := range other.list.coupons() {
			u.gadget.updateCoupon(c)
		}
		return
	case modeSet:
		for _, c := range other.set.coupons() {
			u.gadget.updateCoupon(c)
		}
		return
	}

	// other is in array mode.
	if u.gadget.mode != modeArray {
		u.promoteGadgetToArray()
	}
	if other.lgConfigK < u.gadget.lgConfigK {
		u.downsizeGadget(other.lgConfigK)
	}
	u.mergeArrayInto(other)
	u.gadget.a8.recomputeKxq()
	u.gadget.markOutOfOrder()
}

// promoteGadgetToArray forces the gadget out of list/set mode into an
// Hll8 array at its configured lg_k, replaying any coupons collected so
// far, since array-mode merges operate directly on register slots.
func (u *Union) promoteGadgetToArray() {
	var coupons []uint32
	switch u.gadget.mode {
	case modeList:
		coupons = u.gadget.list.coupons()
	case modeSet:
		coupons = u.gadget.set.coupons()
	default:
		return
	}
	u.gadget.allocateArray()
	u.gadget.mode = modeArray
	for _, c := range coupons {
		u.gadget.updateArray(getSlot(c), getValue(c))
	}
}

// downsizeGadget shrinks the gadget to a smaller lg_k by resampling each
// retained register's slot into the smaller address space and taking the
// per-slot max, matching union.rs's merge_array_with_downsample.
func (u *Union) downsizeGadget(newLgK uint8) {
	old := u.gadget.a8
	resized := NewSketchWithSeed(newLgK, Hll8, u.seed)
	resized.mode = modeArray
	resized.allocateArray()
	for slot := uint32(0); slot < uint32(len(old.bytes)); slot++ {
		v := old.getRaw(slot)
		if v == 0 {
			continue
		}
		newSlot := slot & (uint32(1)<<newLgK - 1)
		resized.a8.mergeRaw(newSlot, v)
	}
	resized.a8.recomputeKxq()
	resized.metrics = u.gadget.metrics
	u.gadget = resized
}

// mergeArrayInto folds other's registers into the gadget's Hll8 array,
// taking the elementwise max per slot. other.lgConfigK is guaranteed to
// be >= the gadget's by the time this runs (Update downsizes first).
func (u *Union) mergeArrayInto(other *Sketch) {
	shift := other.lgConfigK - u.gadget.lgConfigK
	k := uint64(1) << other.lgConfigK
	for slot := uint32(0); slot < uint32(k); slot++ {
		v := other.arrayRawValue(slot)
		if v == 0 {
			continue
		}
		dstSlot := slot
		if shift > 0 {
			dstSlot = slot & (uint32(1)<<u.gadget.lgConfigK - 1)
		}
		u.gadget.a8.mergeRaw(dstSlot, v)
	}
}

// arrayRawValue returns the unshifted register value at slot for
// whichever array variant a Sketch currently holds.
func (s *Sketch) arrayRawValue(slot uint32) uint8 {
	switch s.tgtType {
	case Hll4:
		return s.a4.trueValue(slot)
	case Hll6:
		return s.a6.getRaw(slot)
	default:
		return s.a8.getRaw(slot)
	}
}

// GetResult returns an independent Sketch snapshot of the union's current
// state, converted to hllType. Array-mode conversions to Hll4/Hll6 replay
// the gadget's registers through a fresh sketch of the requested type;
// Hll8 is returned directly since the gadget already is one.
func (u *Union) GetResult(hllType HllType) *Sketch {
	if u.gadget.mode != modeArray {
		result := NewSketchWithSeed(u.gadget.lgConfigK, hllType, u.seed)
		switch u.gadget.mode {
		case modeList:
			for _, c := range u.gadget.list.coupons() {
				result.updateCoupon(c)
			}
		case modeSet:
			for _, c := range u.gadget.set.coupons() {
				result.updateCoupon(c)
			}
		}
		return result
	}

	if hllType == Hll8 {
		out := NewSketchWithSeed(u.gadget.lgConfigK, Hll8, u.seed)
		out.mode = modeArray
		out.allocateArray()
		copy(out.a8.bytes, u.gadget.a8.bytes)
		out.a8.numZeros = u.gadget.a8.numZeros
		out.a8.recomputeKxq()
		out.markOutOfOrder()
		return out
	}

	out := NewSketchWithSeed(u.gadget.lgConfigK, hllType, u.seed)
	out.mode = modeArray
	out.allocateArray()
	k := uint64(1) << u.gadget.lgConfigK
	for slot := uint32(0); slot < uint32(k); slot++ {
		v := u.gadget.a8.getRaw(slot)
		if v == 0 {
			continue
		}
		out.updateArray(slot, v)
	}
	out.markOutOfOrder()
	return out
}
