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

// Package kll implements the KLL quantiles sketch (spec.md section 4.6): a
// leveled compactor where level i carries weight 2^i and compaction
// randomly downsamples every other item to make room. Level storage plays
// the same role as the teacher's ring/ring.go Stripe/Buffer - a
// fixed-capacity buffer that compacts instead of overwriting - and the
// compaction algorithm itself is ported from
// original_source/datasketches/src/kll/{helper,sketch}.rs.
package kll

import "math"

const (
	DefaultK uint16 = 200
	DefaultM uint8  = 8
	MinK     uint16 = uint16(DefaultM)
	MaxK     uint16 = 65535
)

// Ordered is the set of item types supported by Sketch. Float types use
// IEEE NaN semantics (filtered out at Update); int64 and string compare
// directly.
type Ordered interface {
	~int64 | ~float32 | ~float64 | ~string
}

func isNaN[T Ordered](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return x != x
	case float64:
		return x != x
	default:
		return false
	}
}

func less[T Ordered](a, b T) bool { return a < b }

var powersOfThree = [31]uint64{
	1, 3, 9, 27, 81, 243, 729, 2187, 6561, 19683,
	59049, 177147, 531441, 1594323, 4782969, 14348907, 43046721, 129140163, 387420489, 1162261467,
	3486784401, 10460353203, 31381059609, 94143178827, 282429536481, 847288609443, 2541865828329,
	7625597484987, 22876792454961, 68630377364883, 205891132094649,
}

// computeTotalCapacity returns the sum of per-level capacities for a sketch
// with numLevels levels, per spec.md section 4.6.
func computeTotalCapacity(k uint16, m uint8, numLevels int) uint32 {
	var total uint32
	for level := 0; level < numLevels; level++ {
		total += levelCapacity(k, numLevels, level, m)
	}
	return total
}

func levelCapacity(k uint16, numLevels, height int, minWid uint8) uint32 {
	if height >= numLevels {
		panic("kll: height must be < numLevels")
	}
	depth := numLevels - height - 1
	cap := intCapAux(k, uint8(depth))
	if uint32(minWid) > uint32(cap) {
		return uint32(minWid)
	}
	return uint32(cap)
}

func intCapAux(k uint16, depth uint8) uint16 {
	if depth > 60 {
		panic("kll: depth must be <= 60")
	}
	if depth <= 30 {
		return intCapAuxAux(k, depth)
	}
	half := depth / 2
	rest := depth - half
	tmp := intCapAuxAux(k, half)
	return intCapAuxAux(tmp, rest)
}

func intCapAuxAux(k uint16, depth uint8) uint16 {
	if depth > 30 {
		panic("kll: depth must be <= 30")
	}
	twoK := uint64(k) << 1
	tmp := (twoK << depth) / powersOfThree[depth]
	result := (tmp + 1) >> 1
	if result > uint64(k) {
		panic("kll: capacity result exceeds k")
	}
	return uint16(result)
}

func sumTheSampleWeights(levelSizes []int) uint64 {
	var total uint64
	weight := uint64(1)
	for _, size := range levelSizes {
		total += weight * uint64(size)
		weight <<= 1
	}
	return total
}

// normalizedRankError follows spec.md section 4.6's closed-form error bounds.
func normalizedRankError(k uint16, pmf bool) float64 {
	kf := float64(k)
	if pmf {
		return 2.446 / math.Pow(kf, 0.9433)
	}
	return 2.296 / math.Pow(kf, 0.9723)
}

// downsample keeps every other item of an even-length slice. useUp selects
// the scan-up parity rule (used when the level above is empty) versus
// scan-down (level above non-empty); randomBit supplies the Bernoulli(1/2)
// bit spec.md section 4.6 requires for unbiased downsampling.
func downsample[T Ordered](items []T, randomBit bool, useUp bool) []T {
	n := len(items)
	if n == 0 {
		return nil
	}
	if n%2 != 0 {
		panic("kll: downsample requires an even-length slice")
	}
	offset := 0
	if randomBit {
		offset = 1
	}
	var parity int
	if useUp {
		parity = (n - 1 - offset) % 2
		if parity < 0 {
			parity += 2
		}
	} else {
		parity = offset
	}
	out := make([]T, 0, n/2)
	for idx, item := range items {
		if idx%2 == parity {
			out = append(out, item)
		}
	}
	return out
}

func mergeSortedVec[T Ordered](left, right []T) []T {
	merged := make([]T, 0, len(left)+len(right))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		if less(left[i], right[j]) {
			merged = append(merged, left[i])
			i++
		} else {
			merged = append(merged, right[j])
			j++
		}
	}
	merged = append(merged, left[i:]...)
	merged = append(merged, right[j:]...)
	return merged
}
