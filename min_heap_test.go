/*
 * Copyright 2020 Dgraph Labs, Inc. and Contributors
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

type intItem int

func (i intItem) Less(other *intItem) bool {
	return i < *other
}

func TestMinHeapOrdering(t *testing.T) {
	h := NewMinHeap[intItem]()
	values := []intItem{5, 3, 8, 1, 9, 2}
	for _, v := range values {
		v := v
		h.Insert(&v)
	}

	var out []intItem
	for h.Size() > 0 {
		v, ok := h.Extract()
		require.True(t, ok)
		out = append(out, *v)
	}
	require.Equal(t, []intItem{1, 2, 3, 5, 8, 9}, out)
}

func TestMinHeapPeekEmpty(t *testing.T) {
	h := NewMinHeap[intItem]()
	_, ok := h.Peek()
	require.False(t, ok)
}
