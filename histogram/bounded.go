// Copyright The Statline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package histogram provides distribution values whose memory stays
// bounded no matter how many points are recorded. Bounded keeps exact
// values until its capacity fills, then folds new values into their
// nearest bucket; Exponential keeps exponentially-spaced buckets with
// automatic scale adjustment. Both implement statline.Value.
package histogram // import "github.com/statline/go-statline/histogram"

import (
	"math"
	"sort"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/number"
)

// Bounded is a sorted multiset of (value, count) buckets with a fixed
// capacity. While distinct values fit, every recorded value is exact.
// Once the capacity is reached, a new value is folded into the nearest
// existing bucket by absolute distance, keeping that bucket's value;
// equidistant values fold into the lower bucket. The total count is
// exact under all folding.
//
// Not safe for concurrent use; aggregation is single-owner.
type Bounded struct {
	cfg        Config
	values     []float64
	counts     []uint64
	totalSum   float64
	totalCount uint64
	nanDropped uint64
}

var _ statline.Value = (*Bounded)(nil)

// Bucket is one (value, count) pair of a Bounded histogram.
type Bucket struct {
	Value float64
	Count uint64
}

// NewBounded returns an empty histogram.
func NewBounded(cfg Config) (*Bounded, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Bounded{
		cfg:    cfg,
		values: make([]float64, 0, cfg.MaxSize),
		counts: make([]uint64, 0, cfg.MaxSize),
	}, nil
}

// Record adds one observation of v.
func (b *Bounded) Record(v float64) {
	b.RecordN(v, 1)
}

// RecordN adds n observations of v. NaN is not a value; it is ignored
// and counted by NaNDropped. Infinities clamp to the float64 range.
func (b *Bounded) RecordN(v float64, n uint64) {
	if n == 0 {
		return
	}
	if math.IsNaN(v) {
		b.nanDropped += n
		return
	}
	if math.IsInf(v, +1) {
		v = math.MaxFloat64
	} else if math.IsInf(v, -1) {
		v = -math.MaxFloat64
	}

	var tr number.Uint64Traits
	b.totalSum += v * float64(n)
	b.totalCount = tr.SaturatingAdd(b.totalCount, n)

	i := sort.SearchFloat64s(b.values, v)
	if i < len(b.values) && b.values[i] == v {
		b.counts[i] = tr.SaturatingAdd(b.counts[i], n)
		return
	}

	if int32(len(b.values)) < b.cfg.MaxSize {
		b.values = append(b.values, 0)
		b.counts = append(b.counts, 0)
		copy(b.values[i+1:], b.values[i:])
		copy(b.counts[i+1:], b.counts[i:])
		b.values[i] = v
		b.counts[i] = n
		return
	}

	// At capacity: fold into the nearest bucket, lower on ties.
	j := b.nearest(i, v)
	b.counts[j] = tr.SaturatingAdd(b.counts[j], n)
}

// nearest picks between the buckets flanking insertion point i.
func (b *Bounded) nearest(i int, v float64) int {
	switch {
	case i == 0:
		return 0
	case i == len(b.values):
		return len(b.values) - 1
	}
	below := v - b.values[i-1]
	above := b.values[i] - v
	if above < below {
		return i
	}
	return i - 1
}

// Count returns the total number of recorded observations.
func (b *Bounded) Count() uint64 { return b.totalCount }

// Sum returns the sum of recorded observations, computed from the
// original values rather than the folded buckets.
func (b *Bounded) Sum() float64 { return b.totalSum }

// NaNDropped returns how many NaN observations were ignored.
func (b *Bounded) NaNDropped() uint64 { return b.nanDropped }

// Len returns the number of distinct buckets.
func (b *Bounded) Len() int { return len(b.values) }

// Buckets returns a copy of the buckets in ascending value order.
func (b *Bounded) Buckets() []Bucket {
	out := make([]Bucket, len(b.values))
	for i := range b.values {
		out[i] = Bucket{Value: b.values[i], Count: b.counts[i]}
	}
	return out
}

// Visit calls f for each bucket in ascending value order until f
// returns false.
func (b *Bounded) Visit(f func(value float64, count uint64) bool) {
	for i := range b.values {
		if !f(b.values[i], b.counts[i]) {
			return
		}
	}
}

// Reset empties the histogram, keeping its capacity.
func (b *Bounded) Reset() {
	b.values = b.values[:0]
	b.counts = b.counts[:0]
	b.totalSum = 0
	b.totalCount = 0
	b.nanDropped = 0
}

func (b *Bounded) WriteValue(w statline.ValueWriter) {
	obs := make([]statline.Observation, len(b.values))
	for i := range b.values {
		obs[i] = statline.Repeated(b.values[i]*float64(b.counts[i]), b.counts[i])
	}
	w.Metric(obs, b.cfg.Unit, nil, 0)
}
