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

import "sync"

// Shared makes any aggregator safe for concurrent producers by
// serializing its operations behind a mutex. Prefer Worker when the
// insert path must not contend on a lock.
type Shared[T any] struct {
	mu    sync.Mutex
	inner Sink[T]
}

var _ Sink[int64] = (*Shared[int64])(nil)

// NewShared wraps inner.
func NewShared[T any](inner Sink[T]) *Shared[T] {
	return &Shared[T]{inner: inner}
}

// Insert folds one value in under the lock.
func (s *Shared[T]) Insert(t T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Insert(t)
}

// Flush emits pending state if the inner aggregator supports it.
func (s *Shared[T]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.inner.(FlushSink[T]); ok {
		f.Flush()
	}
}

// Close closes the inner aggregator.
func (s *Shared[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Close()
}
