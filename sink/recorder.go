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

package sink // import "github.com/statline/go-statline/sink"

import (
	"context"
	"sync"

	"github.com/statline/go-statline"
)

// Recorder is an EntrySink that keeps every appended entry in memory,
// for tests that assert on what a unit of work emitted. The zero value
// is ready to use and safe for concurrent appends.
type Recorder struct {
	mu      sync.Mutex
	entries []statline.Entry
	flushes int
}

var _ statline.EntrySink = (*Recorder)(nil)

// Append records e.
func (r *Recorder) Append(e statline.Entry) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// ForceFlush counts the call and succeeds.
func (r *Recorder) ForceFlush(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

// Entries returns a copy of everything appended so far, in order.
func (r *Recorder) Entries() []statline.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]statline.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Flushes returns how many times ForceFlush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Reset discards recorded entries and flush counts.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.flushes = 0
}
