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

package aggregate

import (
	"math"
	"testing"

	"github.com/statline/go-statline"
	"github.com/stretchr/testify/require"
)

func writeOf(v statline.Value) *fieldCapture {
	fc := &fieldCapture{}
	v.WriteValue(fc)
	return fc
}

func TestStrategiesOverSequence(t *testing.T) {
	// The canonical sequence: Sum 6, Min 1, Max 3, Last 3.
	var (
		sum  SumUint64
		mn   MinUint64
		mx   MaxUint64
		last LastUint64
	)
	for _, v := range []uint64{1, 2, 3} {
		sum.Add(v)
		mn.Add(v)
		mx.Add(v)
		last.Set(statline.UintValue(v))
	}

	require.Equal(t, uint64(6), sum.Value())
	v, ok := mn.Value()
	require.True(t, ok)
	require.Equal(t, uint64(1), v)
	v, ok = mx.Value()
	require.True(t, ok)
	require.Equal(t, uint64(3), v)
	lv, ok := last.Value()
	require.True(t, ok)
	require.Equal(t, statline.UintValue(3), lv)
}

func TestSumSaturates(t *testing.T) {
	var s SumUint64
	s.Add(math.MaxUint64 - 1)
	s.Add(5)
	require.Equal(t, uint64(math.MaxUint64), s.Value())

	var si SumInt64
	si.Add(math.MinInt64 + 1)
	si.Add(-5)
	require.Equal(t, int64(math.MinInt64), si.Value())
}

func TestExtremaIgnoreNaN(t *testing.T) {
	var mn MinFloat64
	mn.Add(math.NaN())
	_, ok := mn.Value()
	require.False(t, ok)

	mn.Add(2)
	mn.Add(math.NaN())
	v, ok := mn.Value()
	require.True(t, ok)
	require.Equal(t, float64(2), v)
}

func TestUnsetStrategiesEmitNothing(t *testing.T) {
	var mn MinFloat64
	fc := writeOf(&mn)
	require.NoError(t, fc.err)
	require.Empty(t, fc.obs)

	var last LastString
	fc = writeOf(&last)
	require.NoError(t, fc.err)
	require.Nil(t, fc.str)
	require.Empty(t, fc.obs)

	// A zero Sum is a real zero, not an absent value.
	var sum SumUint64
	fc = writeOf(&sum)
	require.Len(t, fc.obs, 1)
	require.Equal(t, uint64(0), fc.obs[0].Unsigned())
}

func TestStrategyObservations(t *testing.T) {
	var sum SumInt64
	sum.Add(-7)
	fc := writeOf(&sum)
	require.Len(t, fc.obs, 1)
	require.Equal(t, statline.FloatingKind, fc.obs[0].Kind())
	require.Equal(t, float64(-7), fc.obs[0].Floating())

	var last LastString
	last.Set("terminal")
	fc = writeOf(&last)
	require.NotNil(t, fc.str)
	require.Equal(t, "terminal", *fc.str)
}
