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

import "math"

// couponEmpty is the sentinel marking an unused List/Set slot; coupon 0
// cannot otherwise occur since a genuine coupon always carries a nonzero
// value (leading_zeros+1 is at least 1).
const couponEmpty uint32 = 0

// container is the shared backing array for List and Set mode: a fixed-
// size slice of coupons plus the count of non-empty slots. Grounded on
// original_source/src/hll/container.rs's Container struct.
type container struct {
	lgSize  uint8
	coupons []uint32
	length  int
}

func newContainer(lgSize uint8) *container {
	return &container{
		lgSize:  lgSize,
		coupons: make([]uint32, 1<<lgSize),
	}
}

func (c *container) isFull() bool { return c.length == len(c.coupons) }

// couponAddrSpace is the size of the 26-bit slot address space every
// coupon is drawn from, used by the List/Set birthday-paradox cardinality
// estimate below.
const couponAddrSpace = float64(uint64(1) << keyBits26)

// estimate returns a cardinality estimate from the count of distinct
// coupons alone, independent of lg_config_k. original_source's
// container.rs computes this via an empirically-fit cubic-interpolation
// table (coupon_mapping::X_ARR/Y_ARR) that was not present in the
// retrieved pack (mod.rs declares the module but its data file was never
// retrieved) -- the same grounding gap already recorded for CPC's ICON
// table in shared/icon.go. This module uses the closed-form birthday-
// paradox inverse instead: with m = 2^26 addressable slots and len
// distinct coupons observed, the expected number of distinct underlying
// items is m * -ln(1 - len/m), which is the textbook coupon-collector
// estimate the reference table is fit to approximate.
func couponCollectorEstimate(length int) float64 {
	if length == 0 {
		return 0
	}
	ratio := float64(length) / couponAddrSpace
	if ratio >= 1 {
		ratio = 1 - 1e-12
	}
	return couponAddrSpace * -math.Log1p(-ratio)
}

// couponRSE is the relative standard error of the List/Set estimator near
// its transition point, per spec.md's HLL estimator discussion and
// original_source's COUPON_RSE constant (0.409 at 2^13 coupons).
const couponRSE = 0.409 / float64(1<<13)

func couponBoundFraction(kappa float64, upper bool) float64 {
	if upper {
		return 1.0 / (1.0 - kappa*couponRSE)
	}
	return 1.0 / (1.0 + kappa*couponRSE)
}
