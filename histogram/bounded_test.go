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

package histogram

import (
	"math"
	"testing"

	"github.com/statline/go-statline"
	"github.com/stretchr/testify/require"
)

// metricCapture records the single Metric write a value performs.
type metricCapture struct {
	obs  []statline.Observation
	unit statline.Unit
	err  error
}

func (c *metricCapture) String(string) { panic("unexpected string") }

func (c *metricCapture) Metric(obs []statline.Observation, unit statline.Unit, _ []statline.Dimension, _ statline.MetricFlags) {
	c.obs = obs
	c.unit = unit
}

func (c *metricCapture) Error(err error) { c.err = err }

func mustBounded(t *testing.T, opts ...Option) *Bounded {
	t.Helper()
	b, err := NewBounded(NewConfig(opts...))
	require.NoError(t, err)
	return b
}

func TestBoundedExactBelowCapacity(t *testing.T) {
	b := mustBounded(t, WithMaxSize(8))
	for _, v := range []float64{5, 1, 3, 1} {
		b.Record(v)
	}
	require.Equal(t, uint64(4), b.Count())
	require.Equal(t, float64(10), b.Sum())
	require.Equal(t, []Bucket{{1, 2}, {3, 1}, {5, 1}}, b.Buckets())
}

func TestBoundedFoldsAtCapacity(t *testing.T) {
	b := mustBounded(t, WithMaxSize(2))
	b.Record(1)
	b.Record(10)

	// 4 is nearer to 1 than to 10.
	b.Record(4)
	require.Equal(t, []Bucket{{1, 2}, {10, 1}}, b.Buckets())

	// 8 is nearer to 10.
	b.Record(8)
	require.Equal(t, []Bucket{{1, 2}, {10, 2}}, b.Buckets())

	// Below and above the whole range.
	b.Record(-100)
	b.Record(100)
	require.Equal(t, []Bucket{{1, 3}, {10, 3}}, b.Buckets())

	// Existing values stay exact matches.
	b.Record(10)
	require.Equal(t, []Bucket{{1, 3}, {10, 4}}, b.Buckets())
}

func TestBoundedTieFavorsLowerBucket(t *testing.T) {
	b := mustBounded(t, WithMaxSize(2))
	b.Record(1)
	b.Record(3)

	// 2 is equidistant from 1 and 3.
	b.Record(2)
	require.Equal(t, []Bucket{{1, 2}, {3, 1}}, b.Buckets())
}

func TestBoundedCountExactUnderFolding(t *testing.T) {
	b := mustBounded(t, WithMaxSize(4))
	const total = 10_000
	for i := 0; i < total; i++ {
		b.Record(float64(i % 97))
	}
	require.Equal(t, uint64(total), b.Count())
	require.Equal(t, 4, b.Len())

	var n uint64
	b.Visit(func(_ float64, count uint64) bool {
		n += count
		return true
	})
	require.Equal(t, uint64(total), n)
}

func TestBoundedAscendingOrder(t *testing.T) {
	b := mustBounded(t, WithMaxSize(16))
	for _, v := range []float64{9, -2, 4, 0, 7.5} {
		b.Record(v)
	}
	prev := math.Inf(-1)
	b.Visit(func(v float64, _ uint64) bool {
		require.Greater(t, v, prev)
		prev = v
		return true
	})
}

func TestBoundedNaNAndInf(t *testing.T) {
	b := mustBounded(t, WithMaxSize(4))
	b.Record(math.NaN())
	require.Equal(t, uint64(0), b.Count())
	require.Equal(t, uint64(1), b.NaNDropped())

	b.Record(math.Inf(1))
	b.Record(math.Inf(-1))
	require.Equal(t, uint64(2), b.Count())
	require.Equal(t, []Bucket{{-math.MaxFloat64, 1}, {math.MaxFloat64, 1}}, b.Buckets())
}

func TestBoundedWriteValue(t *testing.T) {
	b := mustBounded(t, WithMaxSize(4), WithUnit(statline.UnitMilliseconds))
	b.RecordN(2, 3)
	b.Record(5)

	c := &metricCapture{}
	b.WriteValue(c)
	require.NoError(t, c.err)
	require.Equal(t, statline.UnitMilliseconds, c.unit)
	require.Len(t, c.obs, 2)

	total, occ := c.obs[0].Repeated()
	require.Equal(t, float64(6), total)
	require.Equal(t, uint64(3), occ)
	total, occ = c.obs[1].Repeated()
	require.Equal(t, float64(5), total)
	require.Equal(t, uint64(1), occ)
}

func TestBoundedReset(t *testing.T) {
	b := mustBounded(t, WithMaxSize(4))
	b.Record(1)
	b.Reset()
	require.Equal(t, uint64(0), b.Count())
	require.Equal(t, 0, b.Len())
	require.Equal(t, float64(0), b.Sum())
}

func TestBoundedConfig(t *testing.T) {
	_, err := NewBounded(NewConfig(WithMaxSize(1)))
	require.Error(t, err)

	b := mustBounded(t)
	require.Equal(t, DefaultMaxSize, b.cfg.MaxSize)
	require.Equal(t, statline.UnitNone, b.cfg.Unit)
}
