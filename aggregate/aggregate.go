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

// Package aggregate merges many entries into few before they reach a
// sink. An Aggregate folds every inserted value into one accumulator;
// a Keyed aggregator keeps one accumulator per key. Aggregators are
// single-owner and unsynchronized; wrap one in Shared when several
// goroutines insert, or in Worker to move merging off the hot path.
//
// The accumulator is a user type implementing Merged: it is an Entry
// (it knows how to write its merged fields) and it knows how to fold
// in one more source value. The strategy types in this package (Sum,
// Min, Max, Last, plus the histogram package's types) are the usual
// building blocks for its fields.
package aggregate // import "github.com/statline/go-statline/aggregate"

import (
	"errors"
	"fmt"
	"time"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/doevery"
)

// Merged is the accumulator contract: an entry that can fold in
// source values of type T.
type Merged[T any] interface {
	statline.Entry

	// Merge folds one source value into the accumulator.
	Merge(src T)
}

// KeyValue is one component of an aggregation key.
type KeyValue struct {
	Name  string
	Value string
}

// Key identifies one aggregation bucket. Key fields are emitted as
// string values ahead of the accumulator's own fields.
type Key []KeyValue

// Keyer is implemented by source types that declare their own
// aggregation key. NewKeyed uses it when no key function is given;
// New refuses such types outright.
type Keyer interface {
	AggregationKey() Key
}

// Sink is the inserting side of an aggregator.
type Sink[T any] interface {
	// Insert folds one value in.
	Insert(t T)

	// Close flushes pending state exactly once. Safe to defer;
	// later calls do nothing.
	Close()
}

// FlushSink is a Sink that can also emit its pending state early.
type FlushSink[T any] interface {
	Sink[T]

	// Flush emits pending state and resets.
	Flush()
}

var (
	// ErrKeyedShape reports that New was given a type that declares
	// an aggregation key.
	ErrKeyedShape = errors.New("shape declares an aggregation key; use NewKeyed")

	// ErrNoKey reports that NewKeyed was given neither a key
	// function nor a Keyer type.
	ErrNoKey = errors.New("no key function and shape declares no aggregation key")

	errNilSink   = errors.New("nil entry sink")
	errNilMerged = errors.New("nil accumulator constructor")
)

// Aggregate folds every inserted value into a single accumulator and
// appends it to the sink on Flush or Close. Aggregators that never saw
// an insert emit nothing.
type Aggregate[T any, M Merged[T]] struct {
	sink      statline.EntrySink
	newMerged func() M
	current   M
	inserts   uint64
	closed    bool
}

var _ FlushSink[int64] = (*Aggregate[int64, Merged[int64]])(nil)

// New returns an aggregator delivering merged entries to sink. The
// source type must not declare an aggregation key: a keyed type folded
// into a single accumulator silently conflates its buckets, so New
// fails with ErrKeyedShape at construction instead.
func New[T any, M Merged[T]](sink statline.EntrySink, newMerged func() M) (*Aggregate[T, M], error) {
	if sink == nil {
		return nil, fmt.Errorf("aggregate: %w", errNilSink)
	}
	if newMerged == nil {
		return nil, fmt.Errorf("aggregate: %w", errNilMerged)
	}
	var zero T
	if _, ok := any(zero).(Keyer); ok {
		return nil, fmt.Errorf("aggregate: %T: %w", zero, ErrKeyedShape)
	}
	if _, ok := any(&zero).(Keyer); ok {
		return nil, fmt.Errorf("aggregate: %T: %w", &zero, ErrKeyedShape)
	}
	return &Aggregate[T, M]{
		sink:      sink,
		newMerged: newMerged,
		current:   newMerged(),
	}, nil
}

// Insert folds one value into the running accumulator.
func (a *Aggregate[T, M]) Insert(t T) {
	if a.closed {
		insertAfterClose()
		return
	}
	a.current.Merge(t)
	a.inserts++
}

func insertAfterClose() {
	doevery.TimePeriod(30*time.Second, func() {
		statline.Logger().Info("aggregate: insert after close dropped")
	})
}

// Flush appends the accumulator to the sink if anything was inserted,
// then starts a fresh one.
func (a *Aggregate[T, M]) Flush() {
	if a.closed || a.inserts == 0 {
		return
	}
	a.sink.Append(a.current)
	a.current = a.newMerged()
	a.inserts = 0
}

// Close flushes pending state and retires the aggregator. Deferring
// Close guarantees the merged-so-far entry is delivered exactly once
// on every exit path, panics included.
func (a *Aggregate[T, M]) Close() {
	if a.closed {
		return
	}
	a.Flush()
	a.closed = true
}
