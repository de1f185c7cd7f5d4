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

import "github.com/dgraph-io/datasketches-go/shared"

// Compact is an immutable, serializable projection of a Sketch: a plain
// slice of sub-theta hashes plus theta, the seed hash, and the empty flag.
// Ported from original_source/datasketches/src/theta/compact.rs.
type Compact struct {
	theta        uint64
	entries      []uint64
	seedHash     uint16
	isEmpty      bool
	ordered      bool
	lgK          uint8
	resizeFactor ResizeFactor
	samplingProb float32
}

// IsEmpty reports whether the sketch this was built from never saw an item.
func (c *Compact) IsEmpty() bool { return c.isEmpty }

// IsEstimationMode reports whether theta is below the maximum.
func (c *Compact) IsEstimationMode() bool { return c.theta < MaxTheta && !c.isEmpty }

// Theta returns the inclusion threshold as a fraction of the hash space.
func (c *Compact) Theta() float64 { return float64(c.theta) / float64(MaxTheta) }

// Theta64 returns the raw 64-bit theta value.
func (c *Compact) Theta64() uint64 { return c.theta }

// NumRetained returns the number of retained hashes.
func (c *Compact) NumRetained() int { return len(c.entries) }

// SeedHash returns the 16-bit digest of the hash seed used to build this,
// checked against a compatible seed on deserialize or intersection update.
func (c *Compact) SeedHash() uint16 { return c.seedHash }

// Estimate returns the unbiased cardinality estimate.
func (c *Compact) Estimate() float64 {
	if c.isEmpty {
		return 0
	}
	if !c.IsEstimationMode() {
		return float64(len(c.entries))
	}
	return float64(len(c.entries)) / c.Theta()
}

// LowerBound returns a lower confidence bound on the cardinality.
func (c *Compact) LowerBound(kappa shared.NumStdDev) float64 {
	if c.isEmpty {
		return 0
	}
	if !c.IsEstimationMode() {
		return float64(len(c.entries))
	}
	return shared.BinomialBoundLower(kappa, uint64(len(c.entries)), c.Theta())
}

// UpperBound returns an upper confidence bound on the cardinality.
func (c *Compact) UpperBound(kappa shared.NumStdDev) float64 {
	if c.isEmpty {
		return 0
	}
	if !c.IsEstimationMode() {
		return float64(len(c.entries))
	}
	return shared.BinomialBoundUpper(kappa, uint64(len(c.entries)), c.Theta())
}

// Iter returns the retained hashes, sorted ascending if the Compact was
// built with ordering requested.
func (c *Compact) Iter() []uint64 { return c.entries }
