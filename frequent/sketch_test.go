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

package frequent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndToEndScenario(t *testing.T) {
	s, err := NewInt64Sketch(8, 9001)
	require.NoError(t, err)

	s.UpdateWithCount(1, 10)
	for i := int64(2); i <= 7; i++ {
		s.Update(i)
	}

	require.Equal(t, int64(10), s.Estimate(1))
	require.Equal(t, int64(9), s.LowerBound(1))
	require.Equal(t, int64(1), s.MaximumError())

	rows := s.FrequentItems(NoFalsePositives)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].Item)
	require.Equal(t, int64(10), rows[0].Estimate)
}

func TestBoundsAreOrdered(t *testing.T) {
	s, err := NewInt64Sketch(16, 1)
	require.NoError(t, err)
	for i := int64(0); i < 2000; i++ {
		s.Update(i % 64)
	}
	for i := int64(0); i < 64; i++ {
		require.LessOrEqual(t, s.LowerBound(i), s.Estimate(i))
		require.LessOrEqual(t, s.Estimate(i), s.UpperBound(i))
	}
}

func TestMergePreservesStreamWeight(t *testing.T) {
	a, _ := NewInt64Sketch(16, 1)
	b, _ := NewInt64Sketch(16, 1)
	for i := int64(0); i < 100; i++ {
		a.Update(i % 10)
	}
	for i := int64(0); i < 50; i++ {
		b.Update(i % 5)
	}
	total := a.TotalWeight() + b.TotalWeight()
	a.Merge(b)
	require.Equal(t, total, a.TotalWeight())
}

func TestResetClearsState(t *testing.T) {
	s, _ := NewInt64Sketch(8, 1)
	s.Update(1)
	s.Reset()
	require.True(t, s.IsEmpty())
	require.Equal(t, int64(0), s.TotalWeight())
}

func TestSerializeRoundTrip(t *testing.T) {
	s, _ := NewInt64Sketch(8, 9001)
	s.UpdateWithCount(1, 10)
	for i := int64(2); i <= 7; i++ {
		s.Update(i)
	}
	buf := SerializeInt64(s, 9001)
	got, err := DeserializeInt64(buf, 9001)
	require.NoError(t, err)
	require.Equal(t, buf, SerializeInt64(got, 9001))
	require.Equal(t, s.Estimate(1), got.Estimate(1))
}

func TestDeserializeSeedMismatch(t *testing.T) {
	s, _ := NewInt64Sketch(8, 9001)
	s.Update(1)
	buf := SerializeInt64(s, 9001)
	_, err := DeserializeInt64(buf, 42)
	require.Error(t, err)
}

func TestNegativeCountPanics(t *testing.T) {
	s, _ := NewInt64Sketch(8, 1)
	require.Panics(t, func() { s.UpdateWithCount(1, -1) })
}
