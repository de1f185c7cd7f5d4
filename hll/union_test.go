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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionOfDisjointListsEstimatesSum(t *testing.T) {
	u := NewUnion(10)
	a := NewSketch(10, Hll8)
	b := NewSketch(10, Hll8)
	for i := uint64(0); i < 50; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(1000); i < 1050; i++ {
		b.UpdateUint64(i)
	}
	u.Update(a)
	u.Update(b)
	require.InEpsilon(t, 100.0, u.Estimate(), 0.2)
}

func TestUnionOfArraySketchesMerges(t *testing.T) {
	const lgK = 9
	u := NewUnion(lgK)
	a := NewSketch(lgK, Hll8)
	b := NewSketch(lgK, Hll8)
	for i := uint64(0); i < 10000; i++ {
		a.UpdateUint64(i)
	}
	for i := uint64(5000); i < 15000; i++ {
		b.UpdateUint64(i)
	}
	require.Equal(t, modeArray, a.mode)
	require.Equal(t, modeArray, b.mode)

	u.Update(a)
	u.Update(b)
	require.InEpsilon(t, 15000.0, u.Estimate(), 0.1)
}

func TestUnionDownsizesToSmallerIncomingLgK(t *testing.T) {
	u := NewUnion(12)
	big := NewSketch(12, Hll8)
	small := NewSketch(8, Hll8)
	for i := uint64(0); i < 6000; i++ {
		big.UpdateUint64(i)
	}
	for i := uint64(3000); i < 9000; i++ {
		small.UpdateUint64(i)
	}
	require.Equal(t, modeArray, big.mode)
	require.Equal(t, modeArray, small.mode)

	u.Update(big)
	u.Update(small)
	require.Equal(t, uint8(8), u.LgConfigK())
	require.InEpsilon(t, 9000.0, u.Estimate(), 0.15)
}

func TestUnionGetResultConvertsType(t *testing.T) {
	u := NewUnion(10)
	a := NewSketch(10, Hll8)
	for i := uint64(0); i < 8000; i++ {
		a.UpdateUint64(i)
	}
	u.Update(a)

	for _, tgt := range []HllType{Hll4, Hll6, Hll8} {
		r := u.GetResult(tgt)
		require.Equal(t, tgt, r.tgtType)
		require.InEpsilon(t, u.Estimate(), r.Estimate(), 0.05)
	}
}

func TestUnionIgnoresEmptyUpdate(t *testing.T) {
	u := NewUnion(10)
	empty := NewSketch(10, Hll8)
	u.Update(empty)
	require.Equal(t, 0.0, u.Estimate())
}

func TestUnionReset(t *testing.T) {
	u := NewUnion(10)
	a := NewSketch(10, Hll8)
	a.UpdateUint64(1)
	u.Update(a)
	require.NotEqual(t, 0.0, u.Estimate())
	u.Reset()
	require.Equal(t, 0.0, u.Estimate())
}
