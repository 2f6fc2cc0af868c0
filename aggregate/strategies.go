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

package aggregate // import "github.com/statline/go-statline/aggregate"

import (
	"github.com/statline/go-statline"
	"github.com/statline/go-statline/number"
)

// The field strategies. Each one is a statline.Value, so an
// accumulator exposes them directly as entry fields. Distributions
// are covered by the histogram package's Bounded and Exponential.
type (
	// Sum accumulates with saturating addition: overflow clamps to
	// the type's range instead of wrapping.
	Sum[N number.Any, Traits number.Traits[N]] struct {
		value N
	}

	// Min keeps the smallest value. The first of equal values
	// wins; NaN never replaces a value.
	Min[N number.Any, Traits number.Traits[N]] struct {
		value N
		set   bool
	}

	// Max keeps the largest value. The first of equal values wins;
	// NaN never replaces a value.
	Max[N number.Any, Traits number.Traits[N]] struct {
		value N
		set   bool
	}

	// Last keeps the most recent value.
	Last[V statline.Value] struct {
		value V
		set   bool
	}

	SumInt64   = Sum[int64, number.Int64Traits]
	SumUint64  = Sum[uint64, number.Uint64Traits]
	SumFloat64 = Sum[float64, number.Float64Traits]

	MinInt64   = Min[int64, number.Int64Traits]
	MinUint64  = Min[uint64, number.Uint64Traits]
	MinFloat64 = Min[float64, number.Float64Traits]

	MaxInt64   = Max[int64, number.Int64Traits]
	MaxUint64  = Max[uint64, number.Uint64Traits]
	MaxFloat64 = Max[float64, number.Float64Traits]

	LastString   = Last[statline.StringValue]
	LastUint64   = Last[statline.UintValue]
	LastFloat64  = Last[statline.FloatValue]
	LastDuration = Last[statline.DurationValue]
)

var (
	_ statline.Value = (*SumUint64)(nil)
	_ statline.Value = (*MinFloat64)(nil)
	_ statline.Value = (*MaxInt64)(nil)
	_ statline.Value = (*LastString)(nil)
)

// Add folds one value into the sum.
func (s *Sum[N, Traits]) Add(v N) {
	var t Traits
	s.value = t.SaturatingAdd(s.value, v)
}

// Value returns the current sum.
func (s *Sum[N, Traits]) Value() N { return s.value }

func (s *Sum[N, Traits]) WriteValue(w statline.ValueWriter) {
	var t Traits
	w.Metric([]statline.Observation{t.Observe(s.value)}, statline.UnitNone, nil, 0)
}

// Add folds one value into the minimum.
func (m *Min[N, Traits]) Add(v N) {
	var t Traits
	if t.IsNaN(v) {
		return
	}
	if !m.set || v < m.value {
		m.value = v
		m.set = true
	}
}

// Value returns the current minimum; ok is false before any Add.
func (m *Min[N, Traits]) Value() (v N, ok bool) { return m.value, m.set }

func (m *Min[N, Traits]) WriteValue(w statline.ValueWriter) {
	writeExtremum[N, Traits](w, m.value, m.set)
}

// Add folds one value into the maximum.
func (m *Max[N, Traits]) Add(v N) {
	var t Traits
	if t.IsNaN(v) {
		return
	}
	if !m.set || v > m.value {
		m.value = v
		m.set = true
	}
}

// Value returns the current maximum; ok is false before any Add.
func (m *Max[N, Traits]) Value() (v N, ok bool) { return m.value, m.set }

func (m *Max[N, Traits]) WriteValue(w statline.ValueWriter) {
	writeExtremum[N, Traits](w, m.value, m.set)
}

func writeExtremum[N number.Any, Traits number.Traits[N]](w statline.ValueWriter, v N, set bool) {
	var t Traits
	var obs []statline.Observation
	if set {
		obs = []statline.Observation{t.Observe(v)}
	}
	w.Metric(obs, statline.UnitNone, nil, 0)
}

// Set records the most recent value.
func (l *Last[V]) Set(v V) {
	l.value = v
	l.set = true
}

// Value returns the recorded value; ok is false before any Set.
func (l *Last[V]) Value() (v V, ok bool) { return l.value, l.set }

func (l *Last[V]) WriteValue(w statline.ValueWriter) {
	if !l.set {
		w.Metric(nil, statline.UnitNone, nil, 0)
		return
	}
	l.value.WriteValue(w)
}
