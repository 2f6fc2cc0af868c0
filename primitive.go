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

import "time"

// The primitive value types cover the common field shapes. Each one is
// an exported defined type so aggregation strategies can name them in
// type parameters.
type (
	// StringValue is a plain string property.
	StringValue string

	// UintValue is an exact unsigned counter with no unit.
	UintValue uint64

	// FloatValue is a floating-point metric with no unit.
	FloatValue float64

	// BoolValue records false as 0 and true as 1.
	BoolValue bool

	// DurationValue records the duration in milliseconds with
	// nanosecond precision, unit Milliseconds.
	DurationValue time.Duration
)

var (
	_ Value = StringValue("")
	_ Value = UintValue(0)
	_ Value = FloatValue(0)
	_ Value = BoolValue(false)
	_ Value = DurationValue(0)
)

// String wraps v as a value.
func String(v string) StringValue { return StringValue(v) }

// Uint wraps v as a value.
func Uint(v uint64) UintValue { return UintValue(v) }

// Float wraps v as a value.
func Float(v float64) FloatValue { return FloatValue(v) }

// Bool wraps v as a value.
func Bool(v bool) BoolValue { return BoolValue(v) }

// Duration wraps v as a value.
func Duration(v time.Duration) DurationValue { return DurationValue(v) }

func (v StringValue) WriteValue(w ValueWriter) { w.String(string(v)) }

func (v UintValue) WriteValue(w ValueWriter) {
	w.Metric([]Observation{Unsigned(uint64(v))}, UnitNone, nil, 0)
}

func (v FloatValue) WriteValue(w ValueWriter) {
	w.Metric([]Observation{Floating(float64(v))}, UnitNone, nil, 0)
}

func (v BoolValue) WriteValue(w ValueWriter) {
	var n uint64
	if v {
		n = 1
	}
	w.Metric([]Observation{Unsigned(n)}, UnitNone, nil, 0)
}

func (v DurationValue) WriteValue(w ValueWriter) {
	millis := float64(time.Duration(v).Nanoseconds()) / 1e6
	w.Metric([]Observation{Floating(millis)}, UnitMilliseconds, nil, 0)
}
