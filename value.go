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

// ObservationKind discriminates the three observation payloads.
type ObservationKind int

const (
	// UnsignedKind is an exact unsigned integer observation.
	UnsignedKind ObservationKind = iota

	// FloatingKind is a floating-point observation.
	FloatingKind

	// RepeatedKind is a group of identical observations recorded
	// as a total and an occurrence count.
	RepeatedKind
)

// Observation is a single point (or a run of identical points) inside a
// metric value. Observations are immutable.
type Observation struct {
	kind ObservationKind
	uns  uint64
	flt  float64
	occ  uint64
}

// Unsigned returns an exact unsigned integer observation.
func Unsigned(v uint64) Observation {
	return Observation{kind: UnsignedKind, uns: v}
}

// Floating returns a floating-point observation.
func Floating(v float64) Observation {
	return Observation{kind: FloatingKind, flt: v}
}

// Repeated returns occurrences observations that sum to total. It is
// the compact way to record "this value happened n times": the point
// value is total/occurrences.
func Repeated(total float64, occurrences uint64) Observation {
	return Observation{kind: RepeatedKind, flt: total, occ: occurrences}
}

// Kind reports which payload the observation carries.
func (o Observation) Kind() ObservationKind { return o.kind }

// Unsigned returns the UnsignedKind payload.
func (o Observation) Unsigned() uint64 { return o.uns }

// Floating returns the FloatingKind payload.
func (o Observation) Floating() float64 { return o.flt }

// Repeated returns the RepeatedKind payload.
func (o Observation) Repeated() (total float64, occurrences uint64) {
	return o.flt, o.occ
}

// Sum returns the observation's contribution to a distribution total.
func (o Observation) Sum() float64 {
	if o.kind == UnsignedKind {
		return float64(o.uns)
	}
	return o.flt
}

// Count returns how many points the observation stands for. A Repeated
// observation of zero occurrences counts for nothing.
func (o Observation) Count() uint64 {
	if o.kind == RepeatedKind {
		return o.occ
	}
	return 1
}

// Dimension is one name=value pair attached to an individual metric
// value, splitting it away from the entry's shared dimension sets.
type Dimension struct {
	Name  string
	Value string
}

// MetricFlags carries per-metric capabilities orthogonal to the
// observations themselves.
type MetricFlags uint8

const (
	// FlagHighResolution requests 1-second storage resolution from
	// backends that distinguish resolutions.
	FlagHighResolution MetricFlags = 1 << iota

	// FlagNoDirective emits the value as a plain record property
	// with no metric directive, making it visible in the record but
	// invisible to metric extraction.
	FlagNoDirective
)

// HighResolution reports whether FlagHighResolution is set.
func (f MetricFlags) HighResolution() bool { return f&FlagHighResolution != 0 }

// NoDirective reports whether FlagNoDirective is set.
func (f MetricFlags) NoDirective() bool { return f&FlagNoDirective != 0 }

// ValueWriter receives exactly one of the three value shapes. A Value
// must call exactly one method, exactly once.
type ValueWriter interface {
	// String records a plain string property.
	String(v string)

	// Metric records a metric: one or more observations sharing a
	// unit, optional per-value dimensions, and flags.
	Metric(observations []Observation, unit Unit, dimensions []Dimension, flags MetricFlags)

	// Error reports that the value cannot be represented. The
	// surrounding field is dropped and the error surfaces as an
	// encode-time diagnostic.
	Error(err error)
}

// Value is a single field's worth of data. Implementations describe
// themselves to the writer rather than exposing their representation.
type Value interface {
	WriteValue(w ValueWriter)
}
