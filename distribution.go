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

// Distribution is an appendable list of observations sharing one unit.
// It keeps every point; use the histogram package when the point count
// must stay bounded.
type Distribution struct {
	unit Unit
	obs  []Observation
}

var _ Value = (*Distribution)(nil)

// NewDistribution returns an empty distribution with the given unit.
func NewDistribution(unit Unit) *Distribution {
	return &Distribution{unit: unit}
}

// Add appends one floating-point observation.
func (d *Distribution) Add(v float64) {
	d.obs = append(d.obs, Floating(v))
}

// AddUint appends one exact unsigned observation.
func (d *Distribution) AddUint(v uint64) {
	d.obs = append(d.obs, Unsigned(v))
}

// AddRepeated appends occurrences observations summing to total.
func (d *Distribution) AddRepeated(total float64, occurrences uint64) {
	d.obs = append(d.obs, Repeated(total, occurrences))
}

// Len returns the number of recorded observations.
func (d *Distribution) Len() int { return len(d.obs) }

func (d *Distribution) WriteValue(w ValueWriter) {
	w.Metric(d.obs, d.unit, nil, 0)
}

// Mean records a running total and occurrence count, emitting them as
// a single Repeated observation so downstream aggregation can keep
// averaging correctly.
type Mean struct {
	unit  Unit
	total float64
	count uint64
}

var _ Value = (*Mean)(nil)

// NewMean returns an empty mean with the given unit.
func NewMean(unit Unit) *Mean {
	return &Mean{unit: unit}
}

// Record adds one observation.
func (m *Mean) Record(v float64) {
	m.total += v
	m.count++
}

// Mean returns the current mean. ok is false before any Record call.
func (m *Mean) Mean() (mean float64, ok bool) {
	if m.count == 0 {
		return 0, false
	}
	return m.total / float64(m.count), true
}

func (m *Mean) WriteValue(w ValueWriter) {
	var obs []Observation
	if m.count > 0 {
		obs = []Observation{Repeated(m.total, m.count)}
	}
	w.Metric(obs, m.unit, nil, 0)
}
