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

package statline // import "github.com/statline/go-statline"

// WithUnit overrides the unit of a metric value. Applying a unit to a
// string value invalidates the field.
func WithUnit(v Value, u Unit) Value {
	return rewriteValue{
		inner:        v,
		stringReason: "can't apply a unit to a string value",
		rewrite: func(m *metricParts) {
			m.unit = u
		},
	}
}

// WithDimensions attaches per-value dimensions to a metric value,
// splitting it away from the entry's shared dimension sets. Formats
// require the entry to opt in (see AllowSplitEntries). Applying
// dimensions to a string value invalidates the field.
func WithDimensions(v Value, dims ...Dimension) Value {
	return rewriteValue{
		inner:        v,
		stringReason: "can't apply dimensions to a string value",
		rewrite: func(m *metricParts) {
			// Copy rather than append: the inner slice may be
			// shared across visits.
			merged := make([]Dimension, 0, len(m.dims)+len(dims))
			merged = append(merged, m.dims...)
			merged = append(merged, dims...)
			m.dims = merged
		},
	}
}

// HighResolution marks a metric value for 1-second storage resolution.
// Strings pass through unchanged.
func HighResolution(v Value) Value {
	return rewriteValue{
		inner: v,
		rewrite: func(m *metricParts) {
			m.flags |= FlagHighResolution
		},
	}
}

// NoDirective marks a metric value as a plain record property: visible
// in the record, invisible to metric extraction. Strings pass through
// unchanged.
func NoDirective(v Value) Value {
	return rewriteValue{
		inner: v,
		rewrite: func(m *metricParts) {
			m.flags |= FlagNoDirective
		},
	}
}

type metricParts struct {
	obs   []Observation
	unit  Unit
	dims  []Dimension
	flags MetricFlags
}

// rewriteValue re-visits an inner value, adjusting the metric payload
// on the way through.
type rewriteValue struct {
	inner Value
	// stringReason, when set, invalidates string values.
	stringReason string
	rewrite      func(*metricParts)
}

var _ Value = rewriteValue{}

func (v rewriteValue) WriteValue(w ValueWriter) {
	if v.inner == nil {
		w.Error(Invalid("nil value"))
		return
	}
	v.inner.WriteValue(&rewriteWriter{out: w, v: v})
}

type rewriteWriter struct {
	out ValueWriter
	v   rewriteValue
}

func (r *rewriteWriter) String(s string) {
	if r.v.stringReason != "" {
		r.out.Error(Invalid(r.v.stringReason))
		return
	}
	r.out.String(s)
}

func (r *rewriteWriter) Metric(obs []Observation, unit Unit, dims []Dimension, flags MetricFlags) {
	m := metricParts{obs: obs, unit: unit, dims: dims, flags: flags}
	r.v.rewrite(&m)
	r.out.Metric(m.obs, m.unit, m.dims, m.flags)
}

func (r *rewriteWriter) Error(err error) { r.out.Error(err) }
