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

package kll

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEndToEndScenario mirrors spec.md section 8 scenario 3: KLL<f32>,
// k=200, update 1..10000.
func TestEndToEndScenario(t *testing.T) {
	s := NewSketch[float32](200)
	for i := 1; i <= 10000; i++ {
		s.Update(float32(i))
	}

	q0, ok := s.Quantile(0.0, true)
	require.True(t, ok)
	require.Equal(t, float32(1.0), q0)

	q1, ok := s.Quantile(1.0, true)
	require.True(t, ok)
	require.Equal(t, float32(10000.0), q1)

	qmed, ok := s.Quantile(0.5, true)
	require.True(t, ok)
	require.LessOrEqual(t, math.Abs(float64(qmed)-5000), 230.0)
}

func TestRankIsMonotonic(t *testing.T) {
	s := NewSketch[int64](200)
	for i := int64(0); i < 5000; i++ {
		s.Update(i)
	}
	prev := -1.0
	for x := int64(0); x < 5000; x += 137 {
		r, ok := s.Rank(x, true)
		require.True(t, ok)
		require.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestRankBoundsOnMinMax(t *testing.T) {
	s := NewSketch[int64](200)
	for i := int64(0); i < 1000; i++ {
		s.Update(i)
	}
	minItem, ok := s.MinItem()
	require.True(t, ok)
	rMin, ok := s.Rank(minItem, true)
	require.True(t, ok)
	require.LessOrEqual(t, rMin, 1.0/float64(s.N()))

	maxItem, ok := s.MaxItem()
	require.True(t, ok)
	rMax, ok := s.Rank(maxItem, true)
	require.True(t, ok)
	require.Equal(t, 1.0, rMax)
}

func TestMergePreservesN(t *testing.T) {
	a := NewSketch[int64](200)
	b := NewSketch[int64](200)
	for i := int64(0); i < 3000; i++ {
		a.Update(i)
	}
	for i := int64(3000); i < 6000; i++ {
		b.Update(i)
	}
	total := a.N() + b.N()
	a.Merge(b)
	require.Equal(t, total, a.N())
}

func TestUpdateIgnoresNaN(t *testing.T) {
	s := NewSketch[float64](200)
	s.Update(math.NaN())
	require.True(t, s.IsEmpty())
	s.Update(1.0)
	require.False(t, s.IsEmpty())
}

func TestNumRetainedNeverExceedsCapacity(t *testing.T) {
	s := NewSketch[int64](50)
	for i := int64(0); i < 20000; i++ {
		s.Update(i)
		require.LessOrEqual(t, s.NumRetained(), s.capacity())
	}
}

func TestCdfAndPmfSumToOne(t *testing.T) {
	s := NewSketch[int64](200)
	for i := int64(0); i < 1000; i++ {
		s.Update(i)
	}
	splits := []int64{100, 500, 900}
	pmf := s.Pmf(splits, true)
	require.Len(t, pmf, len(splits)+1)
	var sum float64
	for _, p := range pmf {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestSplitPointsMustBeIncreasing(t *testing.T) {
	s := NewSketch[int64](200)
	s.Update(1)
	require.Panics(t, func() { s.Cdf([]int64{5, 3}, true) })
}

func TestSerializeRoundTrip(t *testing.T) {
	s := NewSketch[float32](200)
	for i := 1; i <= 500; i++ {
		s.Update(float32(i))
	}
	buf := SerializeFloat32(s)
	got, err := DeserializeFloat32(buf)
	require.NoError(t, err)
	require.Equal(t, s.N(), got.N())
	require.Equal(t, s.NumRetained(), got.NumRetained())

	gotMin, ok := got.MinItem()
	require.True(t, ok)
	require.Equal(t, float32(1.0), gotMin)
}

func TestSerializeEmptyRoundTrip(t *testing.T) {
	s := NewSketch[int64](200)
	buf := SerializeInt64(s)
	got, err := DeserializeInt64(buf)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

func TestSerializeSingleItemRoundTrip(t *testing.T) {
	s := NewSketch[int64](200)
	s.Update(42)
	buf := SerializeInt64(s)
	got, err := DeserializeInt64(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.N())
	item, ok := got.MinItem()
	require.True(t, ok)
	require.Equal(t, int64(42), item)
}

func TestNormalizedRankError(t *testing.T) {
	s := NewSketch[int64](200)
	require.Greater(t, s.NormalizedRankError(false), 0.0)
	require.Greater(t, s.NormalizedRankError(true), 0.0)
}
