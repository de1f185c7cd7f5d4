/*
 * Copyright 2021 Dgraph Labs, Inc. and Contributors
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

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordUpdate(1)
	m.RecordUpdate(2)
	m.RecordMerge()
	m.RecordCompaction()
	m.RecordResize()
	m.RecordRebuild()

	require.Equal(t, uint64(2), m.Updates())
	require.Equal(t, uint64(1), m.Merges())
	require.Equal(t, uint64(1), m.Compactions())
	require.Equal(t, uint64(1), m.Resizes())
	require.Equal(t, uint64(1), m.Rebuilds())

	m.Clear()
	require.Equal(t, uint64(0), m.Updates())
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordUpdate(1)
		m.Clear()
		_ = m.String()
	})
	require.Equal(t, uint64(0), m.Updates())
}
