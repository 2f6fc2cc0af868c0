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
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/doevery"
)

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Global)
)

// Named returns the process-wide sink registered under name, creating
// it on first use. The same name always yields the same *Global, so
// libraries can append through a name while application setup decides
// what, if anything, is attached to it.
func Named(name string) *Global {
	registryMu.Lock()
	defer registryMu.Unlock()
	g, ok := registry[name]
	if !ok {
		g = &Global{name: name}
		registry[name] = g
	}
	return g
}

// Global is a named attachment point between entry producers and a
// destination sink. Producers append through it at any time; until a
// destination is attached, entries are dropped and counted. Tests
// divert it with SetTestSink without touching the attachment.
//
// All methods are safe for concurrent use. Appends racing an attach,
// detach, or override swap go to the old or the new target, never
// both and never a torn state.
type Global struct {
	name string

	mu        sync.RWMutex
	attached  statline.EntrySink
	overrides []*TestSinkGuard

	dropped uint64
}

var _ statline.EntrySink = (*Global)(nil)

// Append routes e to the active target: the newest test override if
// any, else the attached sink. With no target the entry is dropped,
// counted, and warned about at a rate-limited pace.
func (g *Global) Append(e statline.Entry) {
	if s, ok := g.TrySink(); ok {
		s.Append(e)
		return
	}
	atomic.AddUint64(&g.dropped, 1)
	doevery.TimePeriod(logEvery, func() {
		statline.Logger().Info("no sink attached, dropping entries", "sink", g.name)
	})
}

// TryAppend appends e to the active target and reports whether one
// existed. Unrouted entries are not counted; the caller was told.
func (g *Global) TryAppend(e statline.Entry) bool {
	s, ok := g.TrySink()
	if ok {
		s.Append(e)
	}
	return ok
}

// TrySink returns the active target without appending anything.
func (g *Global) TrySink() (statline.EntrySink, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := len(g.overrides); n > 0 {
		return g.overrides[n-1].sink, true
	}
	if g.attached != nil {
		return g.attached, true
	}
	return nil, false
}

// ForceFlush flushes the active target. With no target there is
// nothing buffered and nothing to report.
func (g *Global) ForceFlush(ctx context.Context) error {
	if s, ok := g.TrySink(); ok {
		return s.ForceFlush(ctx)
	}
	return nil
}

// Dropped returns how many appends found no target.
func (g *Global) Dropped() uint64 {
	return atomic.LoadUint64(&g.dropped)
}

// Attach binds s as the destination and returns the handle that owns
// the binding. Panics if a destination is already attached: two
// components fighting over one name is a wiring bug, not a runtime
// condition.
func (g *Global) Attach(s statline.EntrySink) *AttachHandle {
	if s == nil {
		panic(fmt.Sprintf("statline: sink %q attach of nil sink", g.name))
	}
	g.mu.Lock()
	if g.attached != nil {
		g.mu.Unlock()
		panic(fmt.Sprintf("statline: sink %q already attached", g.name))
	}
	g.attached = s
	g.mu.Unlock()

	h := &AttachHandle{g: g, sink: s}
	runtime.SetFinalizer(h, (*AttachHandle).finalize)
	return h
}

// AttachHandle owns one attachment. Exactly one of Detach or Forget
// should eventually be called; a handle collected with neither is
// reported as a leak.
type AttachHandle struct {
	g    *Global
	sink statline.EntrySink

	mu   sync.Mutex
	done bool
}

// Detach flushes the attached sink, then unbinds it so the name is
// free to attach again. Entries appended while the flush runs may land
// in either era. Second and later calls do nothing.
func (h *AttachHandle) Detach(ctx context.Context) error {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return nil
	}
	h.done = true
	h.mu.Unlock()
	runtime.SetFinalizer(h, nil)

	err := h.sink.ForceFlush(ctx)

	h.g.mu.Lock()
	h.g.attached = nil
	h.g.mu.Unlock()
	return err
}

// Forget keeps the sink attached for the life of the process and
// releases the handle without the leak diagnostic. For attachments
// that intentionally never come down.
func (h *AttachHandle) Forget() {
	h.mu.Lock()
	h.done = true
	h.mu.Unlock()
	runtime.SetFinalizer(h, nil)
}

func (h *AttachHandle) finalize() {
	// Reached only when the handle was collected before Detach or
	// Forget: the attachment can no longer be shut down cleanly.
	statline.Logger().Info("sink attach handle collected without Detach or Forget; entries buffered at exit may be lost",
		"sink", h.g.name)
}

// SetTestSink diverts the Global to s until the returned guard is
// closed, leaving any attached destination in place underneath.
// Overrides nest: the most recently set one receives the entries.
func (g *Global) SetTestSink(s statline.EntrySink) *TestSinkGuard {
	if s == nil {
		panic(fmt.Sprintf("statline: sink %q test override of nil sink", g.name))
	}
	t := &TestSinkGuard{g: g, sink: s}
	g.mu.Lock()
	g.overrides = append(g.overrides, t)
	g.mu.Unlock()
	return t
}

// TestSinkGuard scopes one test override.
type TestSinkGuard struct {
	g    *Global
	sink statline.EntrySink
	once sync.Once
}

// Close removes this guard's override, wherever it sits in the stack,
// restoring whatever was underneath. Idempotent and safe to call
// concurrently with other guards' Closes.
func (t *TestSinkGuard) Close() {
	t.once.Do(func() {
		g := t.g
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, o := range g.overrides {
			if o == t {
				g.overrides = append(g.overrides[:i], g.overrides[i+1:]...)
				return
			}
		}
	})
}
