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

import "math"

// hashSet is the open-addressed coupon store a sketch promotes to once its
// list fills past listToSetFraction*k. Collisions are resolved with an
// odd stride derived from the coupon's own bits, grounded on
// original_source/src/hll/hash_set.rs.
type hashSet struct {
	c *container
}

func newSet() *hashSet {
	return &hashSet{c: newContainer(lgInitSetSize)}
}

func (s *hashSet) stride(coupon uint32) uint32 {
	return ((coupon & keyMask26) >> s.c.lgSize) | 1
}

// update inserts coupon if absent, growing (doubling) the table first
// whenever the probe would otherwise wrap back to its start without
// finding an empty or matching slot.
func (s *hashSet) update(coupon uint32) bool {
	for {
		mask := uint32(1)<<s.c.lgSize - 1
		probe := coupon & mask
		start := probe
		for {
			v := s.c.coupons[probe]
			if v == couponEmpty {
				s.c.coupons[probe] = coupon
				s.c.length++
				return true
			}
			if v == coupon {
				return false
			}
			probe = (probe + s.stride(coupon)) & mask
			if probe == start {
				break
			}
		}
		s.grow()
	}
}

func (s *hashSet) grow() {
	old := s.c
	grown := &hashSet{c: newContainer(old.lgSize + 1)}
	for _, v := range old.coupons {
		if v != couponEmpty {
			grown.update(v)
		}
	}
	s.c = grown.c
}

func (s *hashSet) length() int { return s.c.length }

func (s *hashSet) coupons() []uint32 {
	out := make([]uint32, 0, s.c.length)
	for _, v := range s.c.coupons {
		if v != couponEmpty {
			out = append(out, v)
		}
	}
	return out
}

func (s *hashSet) estimate() float64 {
	return math.Max(float64(s.c.length), couponCollectorEstimate(s.c.length))
}

func (s *hashSet) upperBound(kappa float64) float64 {
	est := couponCollectorEstimate(s.c.length)
	return math.Max(float64(s.c.length), est*couponBoundFraction(kappa, true))
}

func (s *hashSet) lowerBound(kappa float64) float64 {
	est := couponCollectorEstimate(s.c.length)
	return math.Max(float64(s.c.length), est*couponBoundFraction(kappa, false))
}
