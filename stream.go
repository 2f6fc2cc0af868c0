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

import (
	"bufio"
	"io"
)

// Format renders one entry into a destination. Implementations must
// not cache destination state across calls (the caller may hand over a
// different writer every time) and must write each record whole or not
// at all, so a failed entry never leaves a partial record behind.
//
// Errors of type *ValidationError mean the entry was rejected; any
// other error is an I/O failure.
type Format interface {
	Format(e Entry, w io.Writer) error
}

// SampledFormat additionally renders entries that survived sampling,
// compensating recorded counts by the sample rate.
type SampledFormat interface {
	Format

	// FormatSampled renders e given that entries were kept with
	// probability rate, in (0, 1].
	FormatSampled(e Entry, w io.Writer, rate float32) error
}

// EntryStream is the format half of a pipeline: it accepts entries one
// at a time and flushes buffered output on demand.
type EntryStream interface {
	// Emit formats and buffers one entry.
	Emit(e Entry) error

	// Flush forces buffered records to the destination.
	Flush() error
}

// NewStream couples a format to a destination through a buffered
// writer. Not safe for concurrent use; the delivery queue owns it.
func NewStream(f Format, w io.Writer) EntryStream {
	return &stream{f: f, bw: bufio.NewWriter(w)}
}

type stream struct {
	f  Format
	bw *bufio.Writer
}

func (s *stream) Emit(e Entry) error {
	return s.f.Format(e, s.bw)
}

func (s *stream) Flush() error {
	return s.bw.Flush()
}

// MergeGlobals wraps a stream so that every emitted entry also carries
// the global entry's fields. The emitted entry's own fields win on
// name collisions.
func MergeGlobals(s EntryStream, globals Entry) EntryStream {
	return &globalsStream{inner: s, globals: globals}
}

type globalsStream struct {
	inner   EntryStream
	globals Entry
}

func (g *globalsStream) Emit(e Entry) error {
	return g.inner.Emit(Merge(e, g.globals))
}

func (g *globalsStream) Flush() error {
	return g.inner.Flush()
}
