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

package density

import "math"

// Kernel evaluates the contribution between two points. It is a tagged
// variant rather than an interface (spec.md section 9's preferred shape
// for this dispatch point): Gaussian is built in, and a custom kernel
// carries its own evaluation function. Grounded on
// original_source/datasketches/src/density/sketch.rs's DensityKernel
// trait and GaussianKernel impl.
type Kernel struct {
	custom func(a, b []float64) float64
}

// Gaussian returns the default kernel, K(a,b) = exp(-||a-b||^2).
func Gaussian() Kernel {
	return Kernel{}
}

// CustomKernel wraps an arbitrary evaluation function as a Kernel.
func CustomKernel(fn func(a, b []float64) float64) Kernel {
	return Kernel{custom: fn}
}

func (k Kernel) evaluate(a, b []float64) float64 {
	if k.custom != nil {
		return k.custom(a, b)
	}
	return gaussianEvaluate(a, b)
}

func gaussianEvaluate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Exp(-sum)
}
