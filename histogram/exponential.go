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

package histogram // import "github.com/statline/go-statline/histogram"

import (
	"math"

	"github.com/lightstep/go-expohisto/mapping"
	"github.com/lightstep/go-expohisto/mapping/exponent"
	"github.com/lightstep/go-expohisto/mapping/logarithm"
	histostruct "github.com/lightstep/go-expohisto/structure"

	"github.com/statline/go-statline"
)

// Exponential records observations into exponentially-spaced buckets,
// auto-adjusting its scale to the data range. Each wire observation is
// a bucket's midpoint with the bucket's count, so relative error is
// bounded by the bucket width while the total count stays exact.
//
// Not safe for concurrent use; aggregation is single-owner.
type Exponential struct {
	cfg        Config
	scfg       histostruct.Config
	h          *histostruct.Float64
	nanDropped uint64
}

var _ statline.Value = (*Exponential)(nil)

// NewExponential returns an empty histogram.
func NewExponential(cfg Config) (*Exponential, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	scfg, err := histostruct.NewConfig(histostruct.WithMaxSize(cfg.MaxSize)).Validate()
	if err != nil {
		return nil, err
	}
	return &Exponential{
		cfg:  cfg,
		scfg: scfg,
		h:    histostruct.NewFloat64(scfg),
	}, nil
}

// Record adds one observation of v.
func (e *Exponential) Record(v float64) {
	e.RecordN(v, 1)
}

// RecordN adds n observations of v. NaN is ignored and counted by
// NaNDropped; infinities clamp to the float64 range.
func (e *Exponential) RecordN(v float64, n uint64) {
	if n == 0 {
		return
	}
	if math.IsNaN(v) {
		e.nanDropped += n
		return
	}
	if math.IsInf(v, +1) {
		v = math.MaxFloat64
	} else if math.IsInf(v, -1) {
		v = -math.MaxFloat64
	}
	e.h.UpdateByIncr(v, n)
}

// Count returns the total number of recorded observations.
func (e *Exponential) Count() uint64 { return e.h.Count() }

// Sum returns the sum of recorded observations.
func (e *Exponential) Sum() float64 { return e.h.Sum() }

// Min returns the smallest recorded observation; meaningful only when
// Count is nonzero.
func (e *Exponential) Min() float64 { return e.h.Min() }

// Max returns the largest recorded observation; meaningful only when
// Count is nonzero.
func (e *Exponential) Max() float64 { return e.h.Max() }

// ZeroCount returns how many observations were exactly zero.
func (e *Exponential) ZeroCount() uint64 { return e.h.ZeroCount() }

// Scale returns the histogram's current scale factor.
func (e *Exponential) Scale() int32 { return e.h.Scale() }

// NaNDropped returns how many NaN observations were ignored.
func (e *Exponential) NaNDropped() uint64 { return e.nanDropped }

// Reset empties the histogram.
func (e *Exponential) Reset() {
	e.h = histostruct.NewFloat64(e.scfg)
	e.nanDropped = 0
}

func (e *Exponential) WriteValue(w statline.ValueWriter) {
	var (
		neg  = e.h.Negative()
		pos  = e.h.Positive()
		zc   = e.h.ZeroCount()
		size = int(neg.Len()) + int(pos.Len())
	)
	if zc > 0 {
		size++
	}
	obs := make([]statline.Observation, 0, size)
	m := scaleMapping(e.h.Scale())

	// Negative buckets hold absolute values; walking them from the
	// highest index down yields ascending real order.
	for i := int32(neg.Len()) - 1; i >= 0; i-- {
		count := neg.At(uint32(i))
		if count == 0 {
			continue
		}
		mid := bucketMidpoint(m, neg.Offset()+i)
		obs = append(obs, statline.Repeated(-mid*float64(count), count))
	}
	if zc > 0 {
		obs = append(obs, statline.Repeated(0, zc))
	}
	for i := int32(0); i < int32(pos.Len()); i++ {
		count := pos.At(uint32(i))
		if count == 0 {
			continue
		}
		mid := bucketMidpoint(m, pos.Offset()+i)
		obs = append(obs, statline.Repeated(mid*float64(count), count))
	}
	w.Metric(obs, e.cfg.Unit, nil, 0)
}

// scaleMapping returns the boundary mapping for a scale the histogram
// can produce. The logarithm mapping covers positive scales, the
// exponent mapping the rest.
func scaleMapping(scale int32) mapping.Mapping {
	if scale > 0 {
		m, err := logarithm.NewMapping(scale)
		if err == nil {
			return m
		}
	}
	m, err := exponent.NewMapping(min(scale, 0))
	if err != nil {
		// Scale 0 is always valid.
		m, _ = exponent.NewMapping(0)
	}
	return m
}

// bucketMidpoint returns the midpoint of the bucket at index. Boundary
// lookups only fail at the extremes of the float64 range; fall back to
// whichever boundary resolved.
func bucketMidpoint(m mapping.Mapping, index int32) float64 {
	lower, lerr := m.LowerBoundary(index)
	upper, uerr := m.LowerBoundary(index + 1)
	switch {
	case lerr == nil && uerr == nil:
		return (lower + upper) / 2
	case lerr == nil:
		return lower
	case uerr == nil:
		return upper
	default:
		return 0
	}
}
