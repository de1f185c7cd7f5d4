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

// auxToken is the nibble value that marks a slot whose true register value
// is stored out of line in the aux map rather than in the 4-bit array.
const auxToken = 15

// array4 is the densest, most memory-efficient register mode: 4 bits per
// slot, with an auxiliary map holding the small number of registers whose
// true value does not fit in 4 bits. Grounded on
// original_source/src/hll/array4.rs.
type array4 struct {
	lgConfigK   uint8
	bytes       []byte
	curMin      uint8
	numAtCurMin uint32
	auxMap      map[uint32]uint8
	est         *hipEstimator
}

func newArray4(lgConfigK uint8) *array4 {
	k := uint64(1) << lgConfigK
	a := &array4{
		lgConfigK:   lgConfigK,
		bytes:       make([]byte, (k+1)/2),
		curMin:      0,
		numAtCurMin: uint32(k),
		est:         newHipEstimator(lgConfigK),
	}
	return a
}

func (a *array4) getRaw(slot uint32) uint8 {
	b := a.bytes[slot/2]
	if slot%2 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

func (a *array4) putRaw(slot uint32, v uint8) {
	idx := slot / 2
	if slot%2 == 0 {
		a.bytes[idx] = (a.bytes[idx] & 0xF0) | (v & 0x0F)
	} else {
		a.bytes[idx] = (a.bytes[idx] & 0x0F) | (v << 4)
	}
}

// trueValue returns the real register value at slot, resolving the aux
// map when the nibble holds the auxToken sentinel.
func (a *array4) trueValue(slot uint32) uint8 {
	raw := a.getRaw(slot)
	if raw != auxToken {
		return raw + a.curMin
	}
	if v, ok := a.auxMap[slot]; ok {
		return v
	}
	return raw + a.curMin
}

// update folds the register value newValue into slot, returning true if
// this increased the sketch's estimate (a genuine new maximum for that
// slot). Grounded on array4.rs's update/four-case exception handling.
func (a *array4) update(slot uint32, newValue uint8) bool {
	if newValue <= a.curMin {
		return false
	}
	oldRaw := a.getRaw(slot)
	oldTrue := a.trueValue(slot)
	if newValue <= oldTrue {
		return false
	}

	a.est.update(a.lgConfigK, oldTrue, newValue)

	newRaw := int(newValue) - int(a.curMin)
	switch {
	case oldRaw != auxToken && newRaw < auxToken:
		// no exception before, none needed now
		a.putRaw(slot, uint8(newRaw))
	case oldRaw != auxToken && newRaw >= auxToken:
		// becoming an exception
		a.putRaw(slot, auxToken)
		a.setAux(slot, newValue)
	case oldRaw == auxToken && newRaw < auxToken:
		// was an exception, no longer needed (should not normally
		// happen since values only increase, kept for completeness)
		a.putRaw(slot, uint8(newRaw))
		delete(a.auxMap, slot)
	default:
		// already an exception, stays one
		a.setAux(slot, newValue)
	}

	if oldRaw == 0 {
		a.numAtCurMin--
		if a.numAtCurMin == 0 {
			a.shiftToBiggerCurMin()
		}
	}
	return true
}

func (a *array4) setAux(slot uint32, v uint8) {
	if a.auxMap == nil {
		a.auxMap = make(map[uint32]uint8)
	}
	a.auxMap[slot] = v
}

// shiftToBiggerCurMin raises curMin by one once every slot has moved past
// the current minimum, rebuilding the packed array and aux map in terms
// of the new baseline. Grounded on array4.rs's shift_to_bigger_cur_min.
func (a *array4) shiftToBiggerCurMin() {
	newMin := a.curMin + 1
	k := uint64(1) << a.lgConfigK
	var numAtNewMin uint32
	newAux := make(map[uint32]uint8)

	for slot := uint32(0); slot < uint32(k); slot++ {
		raw := a.getRaw(slot)
		if raw == auxToken {
			v := a.auxMap[slot]
			nr := int(v) - int(newMin)
			if nr < auxToken {
				a.putRaw(slot, uint8(nr))
				if nr == 0 {
					numAtNewMin++
				}
			} else {
				a.putRaw(slot, auxToken)
				newAux[slot] = v
			}
			continue
		}
		nr := int(raw) - 1
		if nr < 0 {
			nr = 0
		}
		a.putRaw(slot, uint8(nr))
		if nr == 0 {
			numAtNewMin++
		}
	}

	a.curMin = newMin
	a.numAtCurMin = numAtNewMin
	a.auxMap = newAux
	if len(a.auxMap) == 0 {
		a.auxMap = nil
	}
}

func (a *array4) estimate() float64 {
	return a.est.estimate(a.lgConfigK, a.curMin, a.numAtCurMin)
}
