// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"math"
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"
)

// RandomGenerator is the random generator for imputer.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// Sample n values between low and high, but not in exclude.
func (rng RandomGenerator) Sample(low, high, n int, exclude ...mapset.Set[int]) []int {
	intervalLength := high - low
	excludeSet := mapset.NewSet[int]()
	for _, set := range exclude {
		excludeSet = excludeSet.Union(set)
	}
	sampled := make([]int, 0, n)
	if n >= intervalLength-excludeSet.Cardinality() {
		for i := low; i < high; i++ {
			if !excludeSet.Contains(i) {
				sampled = append(sampled, i)
				excludeSet.Add(i)
			}
		}
	} else {
		for len(sampled) < n {
			v := rng.Intn(intervalLength) + low
			if !excludeSet.Contains(v) {
				sampled = append(sampled, v)
				excludeSet.Add(v)
			}
		}
	}
	return sampled
}

// WeightedSample draws n distinct indices of weights without replacement. The chance
// of picking an index is proportional to its weight among the indices not drawn yet.
// Non-positive and NaN weights are never drawn unless nothing else is left.
func (rng RandomGenerator) WeightedSample(weights []float64, n int) []int {
	if n > len(weights) {
		n = len(weights)
	}
	remain := make([]float64, len(weights))
	for i, w := range weights {
		if w > 0 && !math.IsNaN(w) && !math.IsInf(w, 0) {
			remain[i] = w
		}
	}
	drawn := mapset.NewSet[int]()
	sampled := make([]int, 0, n)
	for len(sampled) < n {
		var total float64
		for i, w := range remain {
			if !drawn.Contains(i) {
				total += w
			}
		}
		if total <= 0 {
			// fall back to uniform sampling over the rest
			sampled = append(sampled, rng.Sample(0, len(weights), n-len(sampled), drawn)...)
			break
		}
		target := rng.Float64() * total
		picked := -1
		for i, w := range remain {
			if drawn.Contains(i) || w == 0 {
				continue
			}
			picked = i
			target -= w
			if target < 0 {
				break
			}
		}
		drawn.Add(picked)
		sampled = append(sampled, picked)
	}
	return sampled
}
