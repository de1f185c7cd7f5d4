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

// Package theta implements the Theta sketch (spec.md section 4.7):
// cardinality estimation plus peer-to-peer set algebra (union, intersection)
// over a bounded sample of 64-bit hashes below a shrinking threshold theta.
// The hash table's open-addressing shape is adapted from the teacher's
// store/store.go map abstraction, and the rebuild step reuses the root
// package's QuickSelectUint64 (from min_heap.go), grounded on
// original_source/datasketches/src/theta/{hash_table,sketch,compact,intersection}.rs.
package theta

const (
	MinLgK     uint8 = 5
	MaxLgK     uint8 = 26
	DefaultLgK uint8 = 12

	// MaxTheta is the initial theta value (2^63 - 1), matching Java's
	// signed-long-max convention for wire compatibility.
	MaxTheta uint64 = 1<<63 - 1

	resizeThreshold  = 0.5
	rebuildThreshold = 15.0 / 16.0

	strideHashBits = 7
	strideMask     = (uint64(1) << strideHashBits) - 1
)

// ResizeFactor controls how aggressively the hash table grows while below
// lg_nom_size, per spec.md section 4.7's "resize factor ∈ {X1,X2,X4,X8}".
type ResizeFactor uint8

const (
	X1 ResizeFactor = iota
	X2
	X4
	X8
)

// LgValue returns the log2 growth step associated with the resize factor.
func (r ResizeFactor) LgValue() uint8 {
	switch r {
	case X1:
		return 0
	case X2:
		return 1
	case X4:
		return 2
	case X8:
		return 3
	default:
		return 3
	}
}

func startingSubMultiple(lgTarget, lgMin, lgResizeFactor uint8) uint8 {
	if lgTarget <= lgMin {
		return lgMin
	}
	if lgResizeFactor == 0 {
		return lgTarget
	}
	return (lgTarget-lgMin)%lgResizeFactor + lgMin
}

func startingThetaFromSamplingProbability(p float32) uint64 {
	if p < 1.0 {
		return uint64(float64(MaxTheta) * float64(p))
	}
	return MaxTheta
}

func getStride(key uint64, lgSize uint8) uint64 {
	return 2*((key>>lgSize)&strideMask) + 1
}
