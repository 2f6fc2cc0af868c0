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

import "context"

// EntrySink accepts finished entries for delivery. Append never blocks
// indefinitely and never panics; under pressure a sink drops and
// counts rather than stall the caller.
type EntrySink interface {
	// Append hands over one entry. The sink owns it afterward; the
	// caller must not mutate it.
	Append(e Entry)

	// ForceFlush delivers everything appended before the call,
	// bounded by ctx.
	ForceFlush(ctx context.Context) error
}

// AppendGuard appends an entry when closed, so a unit of work can
// build its entry incrementally and still emit on every exit path:
//
//	g := statline.DeferAppend(sink, entry)
//	defer g.Close()
//
// Not safe for concurrent use.
type AppendGuard struct {
	sink EntrySink
	e    Entry
	done bool
}

// DeferAppend returns a guard that appends e to s exactly once when
// Close is called.
func DeferAppend(s EntrySink, e Entry) *AppendGuard {
	return &AppendGuard{sink: s, e: e}
}

// Close appends the entry. Second and later calls do nothing.
func (g *AppendGuard) Close() {
	if g == nil || g.done {
		return
	}
	g.done = true
	g.sink.Append(g.e)
}

// Forget cancels the append without performing it.
func (g *AppendGuard) Forget() {
	if g != nil {
		g.done = true
	}
}
