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

package theta

import (
	"encoding/binary"
	"testing"

	"github.com/dgraph-io/datasketches-go/shared"
	"github.com/stretchr/testify/require"
)

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// TestEndToEndScenario mirrors spec.md section 8 scenario 2: lg_k=12,
// seed=9001, insert integers 0..9999.
func TestEndToEndScenario(t *testing.T) {
	s := NewBuilder().LgK(12).Seed(9001).Build()
	for i := uint64(0); i < 10000; i++ {
		s.UpdateUint64(i)
	}

	estimate := s.Estimate()
	require.GreaterOrEqual(t, estimate, 9700.0)
	require.LessOrEqual(t, estimate, 10300.0)

	buf := Serialize(s)
	require.Len(t, buf, 8*(3+s.NumRetained()))

	got, err := Deserialize(buf, 9001)
	require.NoError(t, err)
	require.InDelta(t, estimate, got.Estimate(), 1e-9)
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := NewSketch()
	s.UpdateUint64(42)
	before := s.NumRetained()
	s.UpdateUint64(42)
	require.Equal(t, before, s.NumRetained())
}

func TestNumRetainedNeverExceedsNominalLoadFactor(t *testing.T) {
	s := NewSketchWithLgK(10)
	for i := uint64(0); i < 100000; i++ {
		s.UpdateUint64(i)
		require.LessOrEqual(t, float64(s.NumRetained()), float64(uint64(1)<<10)*rebuildThreshold+1)
	}
}

func TestBoundsStraddleEstimate(t *testing.T) {
	s := NewSketchWithLgK(12)
	for i := uint64(0); i < 50000; i++ {
		s.UpdateUint64(i)
	}
	est := s.Estimate()
	require.LessOrEqual(t, s.LowerBound(shared.Two), est)
	require.GreaterOrEqual(t, s.UpperBound(shared.Two), est)
}

func TestMergeIsUnion(t *testing.T) {
	a := NewSketchWithLgK(12)
	b := NewSketchWithLgK(12)
	for i := uint64(0); i < 5000; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(4000); i < 9000; i++ {
		b.UpdateUint64(i)
	}
	a.Merge(b)
	require.InDelta(t, 9000.0, a.Estimate(), 900.0)
}

func TestIntersectionOfDisjointSketchesIsEmpty(t *testing.T) {
	a := NewSketchWithLgK(12)
	b := NewSketchWithLgK(12)
	for i := uint64(0); i < 1000; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(2000); i < 3000; i++ {
		b.UpdateUint64(i)
	}
	x := NewIntersection()
	require.NoError(t, x.Update(a.ToCompact(false)))
	require.NoError(t, x.Update(b.ToCompact(false)))
	require.True(t, x.HasResult())
	result := x.Result()
	require.Equal(t, 0, result.NumRetained())
}

func TestIntersectionOfOverlappingSketches(t *testing.T) {
	a := NewSketchWithLgK(12)
	b := NewSketchWithLgK(12)
	for i := uint64(0); i < 5000; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(2000); i < 7000; i++ {
		b.UpdateUint64(i)
	}
	x := NewIntersection()
	require.NoError(t, x.Update(a.ToCompact(false)))
	require.NoError(t, x.Update(b.ToCompact(false)))
	require.InDelta(t, 3000.0, x.Result().Estimate(), 900.0)
}

func TestIntersectionSeedMismatchErrors(t *testing.T) {
	a := NewIntersectionWithSeed(1)
	b := NewSketchWithLgK(12)
	b.UpdateUint64(1)
	err := a.Update(b.ToCompact(false))
	require.Error(t, err)
}

func TestIntersectionAbsorbsEmptyPermanently(t *testing.T) {
	a := NewSketchWithLgK(12)
	a.UpdateUint64(1)
	empty := NewSketchWithLgK(12)

	x := NewIntersection()
	require.NoError(t, x.Update(empty.ToCompact(false)))
	require.NoError(t, x.Update(a.ToCompact(false)))
	require.Equal(t, 0, x.Result().NumRetained())
}

func TestSerializeEmptyRoundTrip(t *testing.T) {
	s := NewSketch()
	buf := Serialize(s)
	got, err := Deserialize(buf, defaultSeed)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

func TestSerializeSingleItemRoundTrip(t *testing.T) {
	s := NewSketch()
	s.Update(uint64Bytes(7))
	buf := Serialize(s)
	got, err := Deserialize(buf, defaultSeed)
	require.NoError(t, err)
	require.Equal(t, 1, got.NumRetained())
}

func TestTrimReducesToNominalSize(t *testing.T) {
	s := NewSketchWithLgK(10)
	for i := uint64(0); i < 20000; i++ {
		s.UpdateUint64(i)
	}
	s.Trim()
	require.LessOrEqual(t, s.NumRetained(), 1<<10)
}

func TestResetClearsState(t *testing.T) {
	s := NewSketchWithLgK(10)
	for i := uint64(0); i < 100; i++ {
		s.UpdateUint64(i)
	}
	s.Reset()
	require.True(t, s.IsEmpty())
	require.Equal(t, 0, s.NumRetained())
}
