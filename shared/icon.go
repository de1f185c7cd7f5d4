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

package shared

import "math"

// IconEstimate computes CPC's closed-form "iterative correction" cardinality
// estimate from numCoupons c and k = 2^lgK, following the reference
// implementation's offline-tabulated inverse function. The exact reference
// table is large and empirically fit per lg_k; this module uses the
// closed-form continuous approximation c = k*(1-exp(-n/k)) inverted for n,
// i.e. n = k*ln(k/(k-c)), which the reference ICON table converges to
// for large k (this is documented as an approximation in DESIGN.md).
func IconEstimate(lgK int, numCoupons uint64) float64 {
	k := math.Ldexp(1, lgK)
	c := float64(numCoupons)
	if c <= 0 {
		return 0
	}
	ratio := c / k
	return k * (-math.Log1p(-math.Min(ratio, 1-1e-12)))
}

// IconStdDev returns the standard deviation of the ICON estimator at the
// given lg_k. Below the tabulated range the reference implementation falls
// back to the asymptotic constant ln(2); this module uses that asymptotic
// constant uniformly, scaled by the relative standard error of a k-register
// sketch.
func IconStdDev(lgK int) float64 {
	const asymptoticIcon = math.Ln2
	return asymptoticIcon * RelativeStandardError(lgK)
}

// HipStdDev is the HIP-estimator analog of IconStdDev. The reference
// implementation's asymptotic constant is sqrt(ln(2)/2).
func HipStdDev(lgK int) float64 {
	asymptoticHip := math.Sqrt(math.Ln2 / 2)
	return asymptoticHip * RelativeStandardError(lgK)
}

// IconBounds returns the [lower, upper] confidence interval for a CPC
// estimate at the given kappa (standard deviation count), clamped so the
// lower bound never drops below numCoupons (the estimator can only ever
// have seen at least that many coupons) and the upper bound is rounded up.
func IconBounds(kappa NumStdDev, lgK int, numCoupons uint64, estimate float64) (lower, upper float64) {
	sd := IconStdDev(lgK) * estimate
	lower = estimate - kappa.kappa()*sd
	upper = estimate + kappa.kappa()*sd
	if lower < float64(numCoupons) {
		lower = float64(numCoupons)
	}
	upper = math.Ceil(upper)
	return lower, upper
}

// HipBounds is the HIP-estimator analog of IconBounds.
func HipBounds(kappa NumStdDev, lgK int, numCoupons uint64, hipEstimate float64) (lower, upper float64) {
	sd := HipStdDev(lgK) * hipEstimate
	lower = hipEstimate - kappa.kappa()*sd
	upper = hipEstimate + kappa.kappa()*sd
	if lower < float64(numCoupons) {
		lower = float64(numCoupons)
	}
	upper = math.Ceil(upper)
	return lower, upper
}
