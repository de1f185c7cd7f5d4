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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinomialBounds(t *testing.T) {
	lb := BinomialBoundLower(Two, 10000, 1.0)
	require.Equal(t, 10000.0, lb)

	lb = BinomialBoundLower(Two, 5000, 0.5)
	ub := BinomialBoundUpper(Two, 5000, 0.5)
	require.Less(t, lb, 10000.0)
	require.Greater(t, ub, 10000.0)

	require.Equal(t, 0.0, BinomialBoundLower(One, 0, 0.5))
	require.Equal(t, 0.0, BinomialBoundUpper(One, 0, 0.5))
}

func TestHarmonicNumber(t *testing.T) {
	require.Equal(t, 0.0, HarmonicNumber(0))
	// H(1) == 1
	require.InDelta(t, 1.0, HarmonicNumber(1), 0.01)
	// H(n) ~ ln(n) + gamma for large n
	h := HarmonicNumber(1000)
	require.InDelta(t, math.Log(1000)+0.5772156649, h, 0.01)
}

func TestCubicInterpolate(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{0, 1, 4, 9}
	require.InDelta(t, 0.0, CubicInterpolate(xs, ys, 0), 1e-9)
	require.InDelta(t, 9.0, CubicInterpolate(xs, ys, 3), 1e-9)
	// below/above range clamps to endpoints
	require.Equal(t, 0.0, CubicInterpolate(xs, ys, -5))
	require.Equal(t, 9.0, CubicInterpolate(xs, ys, 50))
}

func TestPowersOfThree(t *testing.T) {
	require.Equal(t, uint64(1), PowersOfThree[0])
	require.Equal(t, uint64(3), PowersOfThree[1])
	require.Equal(t, uint64(9), PowersOfThree[2])
}

func TestIconEstimateMonotonic(t *testing.T) {
	lgK := 11
	e1 := IconEstimate(lgK, 1000)
	e2 := IconEstimate(lgK, 2000)
	require.Less(t, e1, e2)
}
