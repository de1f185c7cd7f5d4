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

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("apple"), 9001)
	b := HashBytes([]byte("apple"), 9001)
	require.Equal(t, a, b)

	c := HashBytes([]byte("grape"), 9001)
	require.NotEqual(t, a, c)
}

func TestHashBytesSeedSensitive(t *testing.T) {
	a := HashBytes([]byte("apple"), 1)
	b := HashBytes([]byte("apple"), 2)
	require.NotEqual(t, a, b)
}

func TestHashBytesEmpty(t *testing.T) {
	p := HashBytes(nil, 0)
	require.Equal(t, p, HashBytes([]byte{}, 0))
}

func TestHashU64MatchesHashBytes(t *testing.T) {
	var buf [8]byte
	putLeUint64(buf[:], 424242)
	require.Equal(t, HashBytes(buf[:], 7), HashU64(424242, 7))
}

func TestSeedHashStableForSameSeed(t *testing.T) {
	require.Equal(t, SeedHash(9001), SeedHash(9001))
	require.NotEqual(t, SeedHash(9001), SeedHash(9002))
}

func TestCanonicalizeFloat(t *testing.T) {
	require.Equal(t, float32(0), CanonicalizeFloat32(float32(-0.0)))
	require.Equal(t, float64(0), CanonicalizeFloat64(-0.0))
	require.True(t, CanonicalizeFloat32(float32(1.5)) == 1.5)
}
