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

// Package number provides the generic numeric traits used by the
// aggregation strategies.
package number // import "github.com/statline/go-statline/number"

import (
	"math"

	"github.com/statline/go-statline"
)

// Any is the set of numeric types the strategies support.
type Any interface {
	int64 | uint64 | float64
}

// Kind labels one of the Any types.
type Kind int

const (
	Int64Kind Kind = iota
	Uint64Kind
	Float64Kind
)

// Traits is the generic traits interface for the numbers used by the
// aggregation strategies. Aggregators are single-owner so the traits
// carry no atomic operations.
type Traits[N Any] interface {
	// SaturatingAdd returns a+b, clamped to the type's range
	// instead of wrapping on overflow.
	SaturatingAdd(a, b N) N

	// Observe converts a number to its wire observation. Unsigned
	// values stay exact; anything else goes through float64.
	Observe(v N) statline.Observation

	// IsNaN indicates whether math.IsNaN() is true (impossible for
	// the integer types).
	IsNaN(v N) bool

	// Kind of.
	Kind() Kind
}

// Int64Traits implements Traits[int64].
type Int64Traits struct{}

var _ Traits[int64] = Int64Traits{}

func (Int64Traits) SaturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func (Int64Traits) Observe(v int64) statline.Observation {
	if v >= 0 {
		return statline.Unsigned(uint64(v))
	}
	return statline.Floating(float64(v))
}

func (Int64Traits) IsNaN(_ int64) bool {
	return false
}

func (Int64Traits) Kind() Kind {
	return Int64Kind
}

// Uint64Traits implements Traits[uint64].
type Uint64Traits struct{}

var _ Traits[uint64] = Uint64Traits{}

func (Uint64Traits) SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func (Uint64Traits) Observe(v uint64) statline.Observation {
	return statline.Unsigned(v)
}

func (Uint64Traits) IsNaN(_ uint64) bool {
	return false
}

func (Uint64Traits) Kind() Kind {
	return Uint64Kind
}

// Float64Traits implements Traits[float64].
type Float64Traits struct{}

var _ Traits[float64] = Float64Traits{}

func (Float64Traits) SaturatingAdd(a, b float64) float64 {
	return a + b
}

func (Float64Traits) Observe(v float64) statline.Observation {
	return statline.Floating(v)
}

func (Float64Traits) IsNaN(v float64) bool {
	return math.IsNaN(v)
}

func (Float64Traits) Kind() Kind {
	return Float64Kind
}
