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

// Package cpc implements the Compressed Probabilistic Counting cardinality
// sketch (spec.md section 4.8): a coupon-collector hash matrix tracked
// sparsely while small and densely once it fills, with a HIP accumulator
// used pre-merge and a closed-form ICON estimator used once merged.
// Grounded on original_source/datasketches/src/cpc/{sketch,cpc_confidence,
// serialization}.rs; that reference's row_col_update body and the sparse/
// dense promotion algorithm are left as commented-out stubs, so the
// coupon matrix itself follows spec.md section 4.8's worked description
// directly. See DESIGN.md for the scoped simplifications this implies
// (no window_offset truncation, no first_interesting_column skip, no
// Golomb-Rice wire compression).
package cpc

import "math/bits"

const (
	DefaultLgK uint8 = 11
	MinLgK     uint8 = 4
	MaxLgK     uint8 = 26

	// denseThresholdNumerator/denseThresholdDenominator give the
	// sparse-entries/k ratio past which the sparse pair table is
	// converted into a dense per-row array. Real CPC promotes around
	// 3k/32; this module uses the same ratio.
	denseThresholdNumerator   = 3
	denseThresholdDenominator = 32
)

var invPow2 = func() [64]float64 {
	var t [64]float64
	for i := range t {
		t[i] = 1.0 / float64(uint64(1)<<uint(i))
	}
	return t
}()

func clampCol(col uint32) uint8 {
	if col > 63 {
		return 63
	}
	return uint8(col)
}

func leadingZeros64(v uint64) uint32 { return uint32(bits.LeadingZeros64(v)) }
