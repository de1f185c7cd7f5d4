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

import (
	"fmt"
	"testing"

	"github.com/dgraph-io/datasketches-go/shared"
	"github.com/stretchr/testify/require"
)

func TestEmptySketch(t *testing.T) {
	s := NewSketch(11, Hll6)
	require.True(t, s.IsEmpty())
	require.Equal(t, 0.0, s.Estimate())
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := NewSketch(11, Hll8)
	s.UpdateUint64(42)
	before := s.Estimate()
	s.UpdateUint64(42)
	require.Equal(t, before, s.Estimate())
}

func TestPromotesThroughModes(t *testing.T) {
	s := NewSketch(10, Hll8)
	require.Equal(t, modeList, s.mode)

	k := uint64(1) << 10
	i := uint64(0)
	for s.mode == modeList {
		s.UpdateUint64(i)
		i++
		if i > k*2 {
			t.Fatal("never promoted out of list mode")
		}
	}
	require.Equal(t, modeSet, s.mode)

	for s.mode == modeSet {
		s.UpdateUint64(i)
		i++
		if i > k*4 {
			t.Fatal("never promoted out of set mode")
		}
	}
	require.Equal(t, modeArray, s.mode)
	require.NotNil(t, s.a8)
}

func TestEstimateAccuracyAtModerateCardinality(t *testing.T) {
	const n = 50000
	s := NewSketch(12, Hll6)
	for i := uint64(0); i < n; i++ {
		s.UpdateUint64(i)
	}
	est := s.Estimate()
	require.InEpsilon(t, float64(n), est, 0.05)
	require.LessOrEqual(t, s.LowerBound(shared.Two), est)
	require.GreaterOrEqual(t, s.UpperBound(shared.Two), est)
}

func TestHll4Hll6Hll8AgreeApproximately(t *testing.T) {
	const n = 20000
	s4 := NewSketch(11, Hll4)
	s6 := NewSketch(11, Hll6)
	s8 := NewSketch(11, Hll8)
	for i := uint64(0); i < n; i++ {
		buf := []byte(fmt.Sprintf("item-%d", i))
		s4.Update(buf)
		s6.Update(buf)
		s8.Update(buf)
	}
	require.InEpsilon(t, s8.Estimate(), s4.Estimate(), 0.1)
	require.InEpsilon(t, s8.Estimate(), s6.Estimate(), 0.1)
}

func TestSerializeRoundTripList(t *testing.T) {
	s := NewSketch(10, Hll8)
	for i := uint64(0); i < 5; i++ {
		s.UpdateUint64(i)
	}
	buf := Serialize(s)
	got, err := Deserialize(buf)
	require.NoError(t, err)
	require.Equal(t, s.Estimate(), got.Estimate())
	require.Equal(t, modeList, got.mode)
}

func TestSerializeRoundTripSet(t *testing.T) {
	s := NewSketch(6, Hll8)
	for i := uint64(0); i < 40; i++ {
		s.UpdateUint64(i)
	}
	require.Equal(t, modeSet, s.mode)
	buf := Serialize(s)
	got, err := Deserialize(buf)
	require.NoError(t, err)
	require.Equal(t, modeSet, got.mode)
	require.Equal(t, s.Estimate(), got.Estimate())
}

func TestSerializeRoundTripArray(t *testing.T) {
	for _, tgt := range []HllType{Hll4, Hll6, Hll8} {
		s := NewSketch(9, tgt)
		for i := uint64(0); i < 5000; i++ {
			s.UpdateUint64(i)
		}
		require.Equal(t, modeArray, s.mode)
		buf := Serialize(s)
		got, err := Deserialize(buf)
		require.NoError(t, err)
		require.Equal(t, modeArray, got.mode)
		require.InEpsilon(t, s.Estimate(), got.Estimate(), 0.01)
	}
}

func TestDeserializeRejectsBadFamily(t *testing.T) {
	s := NewSketch(10, Hll8)
	s.UpdateUint64(1)
	buf := Serialize(s)
	buf[1] = 99
	_, err := Deserialize(buf)
	require.Error(t, err)
}

func TestDeserializeRejectsBadVersion(t *testing.T) {
	s := NewSketch(10, Hll8)
	s.UpdateUint64(1)
	buf := Serialize(s)
	buf[0] = 99
	_, err := Deserialize(buf)
	require.Error(t, err)
}

func TestInvalidLgConfigKPanics(t *testing.T) {
	require.Panics(t, func() { NewSketch(MinLgK-1, Hll8) })
	require.Panics(t, func() { NewSketch(MaxLgK+1, Hll8) })
}
