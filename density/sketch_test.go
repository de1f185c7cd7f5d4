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

import (
	"testing"

	datasketches "github.com/dgraph-io/datasketches-go"
	"github.com/stretchr/testify/require"
)

// pseudoGaussian derives an approximately standard-normal value from a
// RandomSource via a cheap sum-of-uniforms (irwin-hall) approximation,
// so tests can build a clustered point cloud without pulling in
// math/rand.
func pseudoGaussian(rng datasketches.RandomSource) float64 {
	var sum float64
	for i := 0; i < 12; i++ {
		sum += float64(rng.NextU64()%1_000_000) / 1_000_000.0
	}
	return sum - 6.0
}

func TestEmptySketch(t *testing.T) {
	s := NewSketch[float64](8, 2)
	require.True(t, s.IsEmpty())
	require.False(t, s.IsEstimationMode())
}

func TestUpdateTracksCounts(t *testing.T) {
	s := NewSketch[float64](32, 2)
	s.Update([]float64{0, 0})
	s.Update([]float64{1, 1})
	require.Equal(t, uint64(2), s.N())
	require.Equal(t, uint32(2), s.NumRetained())
}

func TestUpdateDimensionMismatchPanics(t *testing.T) {
	s := NewSketch[float64](8, 2)
	require.Panics(t, func() { s.Update([]float64{1, 2, 3}) })
}

func TestEstimateOnEmptyPanics(t *testing.T) {
	s := NewSketch[float64](8, 2)
	require.Panics(t, func() { s.Estimate([]float64{0, 0}) })
}

func TestEstimateIsPositiveNearClusteredPoints(t *testing.T) {
	rng := datasketches.NewXorShift64(12345)
	s := NewSketchWithKernelAndRandomSource[float64](16, 2, Gaussian(), rng)

	src := datasketches.NewXorShift64(999)
	for i := 0; i < 5000; i++ {
		s.Update([]float64{pseudoGaussian(src), pseudoGaussian(src)})
	}

	est := s.Estimate([]float64{0, 0})
	require.Greater(t, est, 0.0)

	far := s.Estimate([]float64{1000, 1000})
	require.Less(t, far, est)
}

func TestCompactionKeepsRetainedBounded(t *testing.T) {
	s := NewSketch[float64](8, 1)
	for i := 0; i < 10000; i++ {
		s.Update([]float64{float64(i)})
	}
	require.True(t, s.IsEstimationMode())
	require.Less(t, int(s.NumRetained()), 10000)
	require.Equal(t, uint64(10000), s.N())
}

func TestMergeCombinesStreams(t *testing.T) {
	a := NewSketch[float64](16, 1)
	b := NewSketch[float64](16, 1)
	for i := 0; i < 500; i++ {
		a.Update([]float64{float64(i)})
	}
	for i := 500; i < 1000; i++ {
		b.Update([]float64{float64(i)})
	}
	a.Merge(b)
	require.Equal(t, uint64(1000), a.N())
}

func TestMergeDimensionMismatchPanics(t *testing.T) {
	a := NewSketch[float64](8, 1)
	b := NewSketch[float64](8, 2)
	a.Update([]float64{1})
	b.Update([]float64{1, 2})
	require.Panics(t, func() { a.Merge(b) })
}

func TestCustomKernel(t *testing.T) {
	calls := 0
	k := CustomKernel(func(a, b []float64) float64 {
		calls++
		return 1.0
	})
	s := NewSketchWithKernel[float64](8, 1, k)
	s.Update([]float64{1})
	s.Update([]float64{2})
	est := s.Estimate([]float64{0})
	require.Equal(t, 1.0, est)
	require.Greater(t, calls, 0)
}

func TestSerializeRoundTripEmpty(t *testing.T) {
	s := NewSketch[float64](8, 3)
	buf := Serialize64(s)
	got, err := Deserialize64(buf)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
	require.Equal(t, s.K(), got.K())
	require.Equal(t, s.Dim(), got.Dim())
}

func TestSerializeRoundTripNonEmpty64(t *testing.T) {
	s := NewSketch[float64](16, 2)
	for i := 0; i < 2000; i++ {
		s.Update([]float64{float64(i), float64(-i)})
	}
	buf := Serialize64(s)
	got, err := Deserialize64(buf)
	require.NoError(t, err)
	require.Equal(t, s.N(), got.N())
	require.Equal(t, s.NumRetained(), got.NumRetained())
	require.Equal(t, s.Estimate([]float64{0, 0}), got.Estimate([]float64{0, 0}))
}

func TestSerializeRoundTripNonEmpty32(t *testing.T) {
	s := NewSketch[float32](16, 2)
	for i := 0; i < 2000; i++ {
		s.Update([]float32{float32(i), float32(-i)})
	}
	buf := Serialize32(s)
	got, err := Deserialize32(buf)
	require.NoError(t, err)
	require.Equal(t, s.N(), got.N())
	require.Equal(t, s.NumRetained(), got.NumRetained())
}

func TestDeserializeRejectsBadFamily(t *testing.T) {
	s := NewSketch[float64](8, 1)
	s.Update([]float64{1})
	buf := Serialize64(s)
	buf[2] = 250
	_, err := Deserialize64(buf)
	require.Error(t, err)
}

func TestDeserializeRejectsSmallK(t *testing.T) {
	s := NewSketch[float64](8, 1)
	buf := Serialize64(s)
	buf[4] = 1
	buf[5] = 0
	_, err := Deserialize64(buf)
	require.Error(t, err)
}
