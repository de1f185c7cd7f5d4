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

// array8 is the simplest, least space-efficient register mode: one full
// byte per slot, used internally by Union (where per-row merges need
// direct, unpacked access) and available as a target sketch type.
// Grounded on original_source/src/hll/array8.rs.
type array8 struct {
	lgConfigK uint8
	bytes     []byte
	numZeros  uint32
	est       *hipEstimator
}

func newArray8(lgConfigK uint8) *array8 {
	k := uint64(1) << lgConfigK
	return &array8{
		lgConfigK: lgConfigK,
		bytes:     make([]byte, k),
		numZeros:  uint32(k),
		est:       newHipEstimator(lgConfigK),
	}
}

func (a *array8) getRaw(slot uint32) uint8 { return a.bytes[slot] }

func (a *array8) putRaw(slot uint32, v uint8) { a.bytes[slot] = v }

func (a *array8) update(slot uint32, newValue uint8) bool {
	oldValue := a.bytes[slot]
	if newValue <= oldValue {
		return false
	}
	a.est.update(a.lgConfigK, oldValue, newValue)
	a.bytes[slot] = newValue
	if oldValue == 0 {
		a.numZeros--
	}
	return true
}

// mergeRaw applies newValue directly without touching the HIP estimator,
// used by Union merges where only the composite estimator is ever
// consulted afterward (the gadget is always marked out of order once a
// second sketch has been merged in).
func (a *array8) mergeRaw(slot uint32, newValue uint8) {
	if newValue <= a.bytes[slot] {
		return
	}
	if a.bytes[slot] == 0 {
		a.numZeros--
	}
	a.bytes[slot] = newValue
}

func (a *array8) estimate() float64 {
	return a.est.estimate(a.lgConfigK, 0, a.numZeros)
}

// recomputeKxq rebuilds the HIP estimator's kxq sums from the current
// register contents. mergeRaw applies batches of register updates without
// tracking HIP state incrementally (an HLL union is never evaluated with
// the in-order HIP estimator, only the composite one), so whatever merges
// the registers directly must call this afterward to keep the composite
// estimator's raw-estimate term consistent with what is actually stored.
func (a *array8) recomputeKxq() {
	var kxq0, kxq1 float64
	for _, v := range a.bytes {
		if v < 32 {
			kxq0 += invPow2(v)
		} else {
			kxq1 += invPow2(v)
		}
	}
	a.est.kxq0 = kxq0
	a.est.kxq1 = kxq1
}
