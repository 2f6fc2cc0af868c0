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
	"fmt"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/fprint"
)

// DefaultCardinalityLimit bounds the number of distinct keys a Keyed
// aggregator tracks before folding new keys into the overflow bucket.
const DefaultCardinalityLimit = 2000

// OverflowKey identifies the bucket that absorbs inserts once the
// cardinality limit is reached.
var OverflowKey = Key{{Name: "aggregate.overflow", Value: "true"}}

// KeyedOption configures a Keyed aggregator.
type KeyedOption func(*keyedConfig)

type keyedConfig struct {
	limit int
}

// WithCardinalityLimit bounds the number of distinct keys. Zero or
// negative means unlimited.
func WithCardinalityLimit(n int) KeyedOption {
	return func(c *keyedConfig) {
		c.limit = n
	}
}

// Keyed keeps one accumulator per key and emits one merged entry per
// key on Flush or Close, each led by its key fields. Flush order is
// key first-seen order, so output is deterministic for a given insert
// sequence.
type Keyed[T any, M Merged[T]] struct {
	sink      statline.EntrySink
	keyFn     func(T) Key
	newMerged func(Key) M
	limit     int

	buckets map[uint64]*keyedBucket[M]
	order   []*keyedBucket[M]
	closed  bool
}

var _ FlushSink[int64] = (*Keyed[int64, Merged[int64]])(nil)

// keyedBucket chains on fingerprint collision.
type keyedBucket[M any] struct {
	key    Key
	merged M
	next   *keyedBucket[M]
}

// NewKeyed returns a keyed aggregator delivering merged entries to
// sink. keyFn extracts each source value's key; if nil, the source
// type must implement Keyer.
func NewKeyed[T any, M Merged[T]](sink statline.EntrySink, keyFn func(T) Key, newMerged func(Key) M, opts ...KeyedOption) (*Keyed[T, M], error) {
	if sink == nil {
		return nil, fmt.Errorf("aggregate: %w", errNilSink)
	}
	if newMerged == nil {
		return nil, fmt.Errorf("aggregate: %w", errNilMerged)
	}
	if keyFn == nil {
		var zero T
		switch {
		case implementsKeyer(zero):
			keyFn = func(t T) Key { return any(t).(Keyer).AggregationKey() }
		case implementsKeyer(&zero):
			keyFn = func(t T) Key { return any(&t).(Keyer).AggregationKey() }
		default:
			return nil, fmt.Errorf("aggregate: %T: %w", zero, ErrNoKey)
		}
	}
	cfg := keyedConfig{limit: DefaultCardinalityLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Keyed[T, M]{
		sink:      sink,
		keyFn:     keyFn,
		newMerged: newMerged,
		limit:     cfg.limit,
		buckets:   map[uint64]*keyedBucket[M]{},
	}, nil
}

func implementsKeyer(v any) bool {
	_, ok := v.(Keyer)
	return ok
}

// Insert folds one value into its key's accumulator.
func (k *Keyed[T, M]) Insert(t T) {
	if k.closed {
		insertAfterClose()
		return
	}
	k.bucket(k.keyFn(t), true).merged.Merge(t)
}

// bucket finds or creates the accumulator for key. Above the
// cardinality limit new keys land in the overflow bucket.
func (k *Keyed[T, M]) bucket(key Key, allowOverflow bool) *keyedBucket[M] {
	fp := fingerprintKey(key)
	for rec := k.buckets[fp]; rec != nil; rec = rec.next {
		if keysEqual(rec.key, key) {
			return rec
		}
	}
	if allowOverflow && k.limit > 0 && len(k.order) >= k.limit {
		return k.bucket(OverflowKey, false)
	}
	rec := &keyedBucket[M]{key: key, merged: k.newMerged(key)}
	rec.next = k.buckets[fp]
	k.buckets[fp] = rec
	k.order = append(k.order, rec)
	return rec
}

// Len returns the number of distinct keys currently tracked.
func (k *Keyed[T, M]) Len() int { return len(k.order) }

// Flush appends one merged entry per key, then forgets all keys.
func (k *Keyed[T, M]) Flush() {
	if k.closed {
		return
	}
	for _, rec := range k.order {
		k.sink.Append(keyedEntry{key: rec.key, merged: rec.merged})
	}
	k.order = k.order[:0]
	clear(k.buckets)
}

// Close flushes pending keys and retires the aggregator. Safe to
// defer; later calls do nothing.
func (k *Keyed[T, M]) Close() {
	if k.closed {
		return
	}
	k.Flush()
	k.closed = true
}

// keyedEntry leads with the key fields, then the merged fields.
type keyedEntry struct {
	key    Key
	merged statline.Entry
}

func (e keyedEntry) Write(w statline.EntryWriter) {
	for _, kv := range e.key {
		w.Value(kv.Name, statline.String(kv.Value))
	}
	e.merged.Write(w)
}

func fingerprintKey(key Key) uint64 {
	var fp uint64
	for _, kv := range key {
		fp += fprint.Mix(fprint.String(kv.Name), fprint.String(kv.Value))
	}
	return fp
}

func keysEqual(a, b Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
