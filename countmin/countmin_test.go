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

package countmin

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateNeverUndercounts(t *testing.T) {
	s, err := NewSketch(5, 2048, 9001)
	require.NoError(t, err)

	trueCounts := map[string]uint64{}
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("item-%d", i%50)
		s.Update([]byte(key), 1)
		trueCounts[key]++
	}
	for key, want := range trueCounts {
		got := s.Estimate([]byte(key))
		require.GreaterOrEqualf(t, got, want, "estimate for %q undercounted", key)
	}
}

func TestUpperBoundBoundsError(t *testing.T) {
	s, err := NewSketch(5, 256, 1)
	require.NoError(t, err)
	s.Update([]byte("banana"), 3)

	estimate := s.Estimate([]byte("banana"))
	upper := s.UpperBound([]byte("banana"))
	require.GreaterOrEqual(t, upper, estimate)
}

func TestSuggestSizing(t *testing.T) {
	require.Greater(t, SuggestNumBuckets(0.01), uint32(0))
	require.Greater(t, SuggestNumHashes(0.99), uint16(0))
}

func TestMergeRequiresCompatible(t *testing.T) {
	a, _ := NewSketch(4, 128, 1)
	b, _ := NewSketch(4, 256, 1)
	require.Error(t, a.Merge(b))
}

func TestMergeSumsCounts(t *testing.T) {
	a, _ := NewSketch(4, 1024, 7)
	b, _ := NewSketch(4, 1024, 7)
	a.Update([]byte("x"), 2)
	b.Update([]byte("x"), 3)
	require.NoError(t, a.Merge(b))
	require.GreaterOrEqual(t, a.Estimate([]byte("x")), uint64(5))
	require.Equal(t, uint64(5), a.TotalWeight())
}

func TestSerializeRoundTrip(t *testing.T) {
	s, _ := NewSketch(4, 512, 42)
	s.Update([]byte("a"), 1)
	s.Update([]byte("b"), 7)

	buf := s.Serialize()
	got, err := Deserialize(buf, 42)
	require.NoError(t, err)
	require.Equal(t, buf, got.Serialize())
	require.Equal(t, s.Estimate([]byte("b")), got.Estimate([]byte("b")))
}

func TestDeserializeSeedMismatch(t *testing.T) {
	s, _ := NewSketch(4, 512, 42)
	s.Update([]byte("a"), 1)
	buf := s.Serialize()
	_, err := Deserialize(buf, 43)
	require.Error(t, err)
}
