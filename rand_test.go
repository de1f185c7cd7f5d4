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

package datasketches

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXorShift64Deterministic(t *testing.T) {
	a := NewXorShift64(42)
	b := NewXorShift64(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.NextU64(), b.NextU64())
	}
}

func TestXorShift64ZeroSeedReplaced(t *testing.T) {
	x := NewXorShift64(0)
	require.NotEqual(t, uint64(0), x.NextU64())
}

func TestXorShift64BoolDistribution(t *testing.T) {
	x := NewXorShift64(7)
	trues := 0
	const n = 10000
	for i := 0; i < n; i++ {
		if x.NextBool() {
			trues++
		}
	}
	require.InDelta(t, n/2, trues, float64(n)/10)
}

func TestQuickSelectUint64(t *testing.T) {
	s := []uint64{5, 3, 8, 1, 9, 2}
	cp := append([]uint64(nil), s...)
	for k := 0; k < len(s); k++ {
		in := append([]uint64(nil), cp...)
		got := QuickSelectUint64(in, k)
		sorted := append([]uint64(nil), cp...)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		require.Equal(t, sorted[k], got)
	}
}
