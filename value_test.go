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

package statline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// valueCapture records the single write a Value performs.
type valueCapture struct {
	str    *string
	metric *metricParts
	err    error
}

func (c *valueCapture) String(v string) { c.str = &v }

func (c *valueCapture) Metric(obs []Observation, unit Unit, dims []Dimension, flags MetricFlags) {
	c.metric = &metricParts{obs: obs, unit: unit, dims: dims, flags: flags}
}

func (c *valueCapture) Error(err error) { c.err = err }

func capture(t *testing.T, v Value) *valueCapture {
	t.Helper()
	c := &valueCapture{}
	v.WriteValue(c)
	return c
}

func requireSingleMetric(t *testing.T, c *valueCapture) Observation {
	t.Helper()
	require.NoError(t, c.err)
	require.NotNil(t, c.metric)
	require.Len(t, c.metric.obs, 1)
	return c.metric.obs[0]
}

func TestObservationKinds(t *testing.T) {
	u := Unsigned(7)
	require.Equal(t, UnsignedKind, u.Kind())
	require.Equal(t, uint64(7), u.Unsigned())
	require.Equal(t, float64(7), u.Sum())
	require.Equal(t, uint64(1), u.Count())

	f := Floating(2.5)
	require.Equal(t, FloatingKind, f.Kind())
	require.Equal(t, 2.5, f.Floating())
	require.Equal(t, 2.5, f.Sum())
	require.Equal(t, uint64(1), f.Count())

	r := Repeated(10, 4)
	require.Equal(t, RepeatedKind, r.Kind())
	total, occ := r.Repeated()
	require.Equal(t, float64(10), total)
	require.Equal(t, uint64(4), occ)
	require.Equal(t, float64(10), r.Sum())
	require.Equal(t, uint64(4), r.Count())
}

func TestPrimitives(t *testing.T) {
	c := capture(t, String("hello"))
	require.NotNil(t, c.str)
	require.Equal(t, "hello", *c.str)

	obs := requireSingleMetric(t, capture(t, Uint(42)))
	require.Equal(t, UnsignedKind, obs.Kind())
	require.Equal(t, uint64(42), obs.Unsigned())

	obs = requireSingleMetric(t, capture(t, Float(1.25)))
	require.Equal(t, FloatingKind, obs.Kind())
	require.Equal(t, 1.25, obs.Floating())

	obs = requireSingleMetric(t, capture(t, Bool(true)))
	require.Equal(t, uint64(1), obs.Unsigned())
	obs = requireSingleMetric(t, capture(t, Bool(false)))
	require.Equal(t, uint64(0), obs.Unsigned())
}

func TestDurationMilliseconds(t *testing.T) {
	c := capture(t, Duration(42*time.Millisecond))
	obs := requireSingleMetric(t, c)
	require.Equal(t, UnitMilliseconds, c.metric.unit)
	require.Equal(t, float64(42), obs.Floating())

	// Sub-millisecond precision is preserved.
	c = capture(t, Duration(1500*time.Microsecond))
	obs = requireSingleMetric(t, c)
	require.Equal(t, 1.5, obs.Floating())
}

func TestWithUnit(t *testing.T) {
	c := capture(t, WithUnit(Uint(3), UnitBytes))
	requireSingleMetric(t, c)
	require.Equal(t, UnitBytes, c.metric.unit)

	c = capture(t, WithUnit(String("x"), UnitBytes))
	require.Error(t, c.err)
	require.Nil(t, c.str)
}

func TestWithDimensions(t *testing.T) {
	c := capture(t, WithDimensions(Uint(1), Dimension{Name: "api", Value: "Get"}))
	requireSingleMetric(t, c)
	require.Equal(t, []Dimension{{Name: "api", Value: "Get"}}, c.metric.dims)

	c = capture(t, WithDimensions(String("x"), Dimension{Name: "api", Value: "Get"}))
	var verr *ValidationError
	require.ErrorAs(t, c.err, &verr)
	require.Contains(t, verr.Error(), "can't apply dimensions to a string value")
}

func TestFlagWrappers(t *testing.T) {
	c := capture(t, HighResolution(Float(1)))
	requireSingleMetric(t, c)
	require.True(t, c.metric.flags.HighResolution())
	require.False(t, c.metric.flags.NoDirective())

	c = capture(t, NoDirective(HighResolution(Uint(1))))
	requireSingleMetric(t, c)
	require.True(t, c.metric.flags.HighResolution())
	require.True(t, c.metric.flags.NoDirective())

	// Flags pass strings through untouched.
	c = capture(t, HighResolution(String("s")))
	require.NoError(t, c.err)
	require.NotNil(t, c.str)
}

func TestDistribution(t *testing.T) {
	d := NewDistribution(UnitMilliseconds)
	d.Add(1.5)
	d.AddUint(2)
	d.AddRepeated(9, 3)
	require.Equal(t, 3, d.Len())

	c := capture(t, d)
	require.NoError(t, c.err)
	require.Equal(t, UnitMilliseconds, c.metric.unit)
	require.Len(t, c.metric.obs, 3)
	require.Equal(t, uint64(5), func() (n uint64) {
		for _, o := range c.metric.obs {
			n += o.Count()
		}
		return n
	}())
}

func TestMean(t *testing.T) {
	m := NewMean(UnitSeconds)
	_, ok := m.Mean()
	require.False(t, ok)

	c := capture(t, m)
	require.NotNil(t, c.metric)
	require.Empty(t, c.metric.obs)

	m.Record(2)
	m.Record(4)
	mean, ok := m.Mean()
	require.True(t, ok)
	require.Equal(t, float64(3), mean)

	obs := requireSingleMetric(t, capture(t, m))
	total, occ := obs.Repeated()
	require.Equal(t, float64(6), total)
	require.Equal(t, uint64(2), occ)
}
