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

package cpc

import (
	"testing"

	"github.com/dgraph-io/datasketches-go/shared"
	"github.com/stretchr/testify/require"
)

// TestEndToEndScenario mirrors spec.md section 8 scenario 4: lg_k=11,
// update 0..10000.
func TestEndToEndScenario(t *testing.T) {
	s := NewSketch(11)
	for i := uint64(0); i < 10000; i++ {
		s.UpdateUint64(i)
	}

	est := s.Estimate()
	require.GreaterOrEqual(t, est, 9800.0)
	require.LessOrEqual(t, est, 10200.0)

	require.LessOrEqual(t, s.LowerBound(shared.One), est)
	require.GreaterOrEqual(t, s.UpperBound(shared.One), est)
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := NewSketch(11)
	s.UpdateUint64(42)
	before := s.NumCoupons()
	s.UpdateUint64(42)
	require.Equal(t, before, s.NumCoupons())
}

func TestPromotesToDense(t *testing.T) {
	s := NewSketch(8)
	require.Nil(t, s.dense)
	for i := uint64(0); i < 5000; i++ {
		s.UpdateUint64(i)
	}
	require.NotNil(t, s.dense)
	require.Nil(t, s.sparse)
}

func TestMergeUnionsCoupons(t *testing.T) {
	a := NewSketch(11)
	b := NewSketch(11)
	for i := uint64(0); i < 5000; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(4000); i < 9000; i++ {
		b.UpdateUint64(i)
	}
	a.Merge(b)
	require.InDelta(t, 9000.0, a.Estimate(), 900.0)
}

func TestMergeInvalidatesHIP(t *testing.T) {
	a := NewSketch(11)
	b := NewSketch(11)
	a.UpdateUint64(1)
	b.UpdateUint64(2)
	a.Merge(b)
	require.True(t, a.mergeFlag)
}

func TestMergeRejectsMismatchedLgK(t *testing.T) {
	a := NewSketch(11)
	b := NewSketch(12)
	require.Panics(t, func() { a.Merge(b) })
}

func TestSerializeRoundTripSparse(t *testing.T) {
	s := NewSketch(11)
	for i := uint64(0); i < 100; i++ {
		s.UpdateUint64(i)
	}
	buf := Serialize(s)
	got, err := Deserialize(buf, defaultSeed)
	require.NoError(t, err)
	require.Equal(t, s.NumCoupons(), got.NumCoupons())
	require.InDelta(t, s.Estimate(), got.Estimate(), 1e-6)
}

func TestSerializeRoundTripDense(t *testing.T) {
	s := NewSketch(8)
	for i := uint64(0); i < 5000; i++ {
		s.UpdateUint64(i)
	}
	require.NotNil(t, s.dense)
	buf := Serialize(s)
	got, err := Deserialize(buf, defaultSeed)
	require.NoError(t, err)
	require.Equal(t, s.NumCoupons(), got.NumCoupons())
	require.NotNil(t, got.dense)
}

func TestSerializeEmptyRoundTrip(t *testing.T) {
	s := NewSketch(11)
	buf := Serialize(s)
	got, err := Deserialize(buf, defaultSeed)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}
