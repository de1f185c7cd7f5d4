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

import "encoding/binary"

const valMask6 = 0x3F

// array6 packs one 6-bit register per slot across a byte array, read and
// written through 16-bit windows since a register can straddle a byte
// boundary. Grounded on original_source/src/hll/array6.rs.
type array6 struct {
	lgConfigK uint8
	bytes     []byte
	numZeros  uint32
	est       *hipEstimator
}

// numBytesForK6 mirrors array6.rs's num_bytes_for_k: k*6 bits rounded up,
// plus one spare byte so the final 16-bit window read never runs past the
// slice.
func numBytesForK6(k uint64) int {
	return int(k*3/4) + 1
}

func newArray6(lgConfigK uint8) *array6 {
	k := uint64(1) << lgConfigK
	return &array6{
		lgConfigK: lgConfigK,
		bytes:     make([]byte, numBytesForK6(k)),
		numZeros:  uint32(k),
		est:       newHipEstimator(lgConfigK),
	}
}

func (a *array6) getRaw(slot uint32) uint8 {
	bitIdx := uint32(slot) * 6
	byteIdx := bitIdx >> 3
	shift := bitIdx & 7
	window := binary.LittleEndian.Uint16(a.bytes[byteIdx : byteIdx+2])
	return uint8((window >> shift) & valMask6)
}

func (a *array6) putRaw(slot uint32, v uint8) {
	bitIdx := uint32(slot) * 6
	byteIdx := bitIdx >> 3
	shift := bitIdx & 7
	window := binary.LittleEndian.Uint16(a.bytes[byteIdx : byteIdx+2])
	window &^= valMask6 << shift
	window |= uint16(v&valMask6) << shift
	binary.LittleEndian.PutUint16(a.bytes[byteIdx:byteIdx+2], window)
}

func (a *array6) update(slot uint32, newValue uint8) bool {
	oldValue := a.getRaw(slot)
	if newValue <= oldValue {
		return false
	}
	a.est.update(a.lgConfigK, oldValue, newValue)
	a.putRaw(slot, newValue)
	if oldValue == 0 {
		a.numZeros--
	}
	return true
}

func (a *array6) estimate() float64 {
	return a.est.estimate(a.lgConfigK, 0, a.numZeros)
}
