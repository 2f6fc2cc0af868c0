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
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/doevery"
)

// WriterSink formats entries on the caller's goroutine, serialized by
// a mutex. Every Append pays the formatting cost inline, so this suits
// command line tools and tests rather than servers; servers want a
// BackgroundQueue.
type WriterSink struct {
	mu     sync.Mutex
	stream statline.EntryStream
	log    logr.Logger
}

var _ statline.EntrySink = (*WriterSink)(nil)

// NewWriterSink takes ownership of stream. The sink serializes access;
// no other goroutine may call the stream afterward.
func NewWriterSink(stream statline.EntryStream) *WriterSink {
	return &WriterSink{
		stream: stream,
		log:    statline.Logger(),
	}
}

// Append formats and buffers one entry. Errors are counted against the
// log, not returned; Append never panics.
func (w *WriterSink) Append(e statline.Entry) {
	if e == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.stream.Emit(e)
	if err == nil {
		return
	}
	var verr *statline.ValidationError
	if errors.As(err, &verr) {
		doevery.TimePeriod(logEvery, func() {
			w.log.Info("dropped invalid entry", "error", err)
		})
		return
	}
	doevery.TimePeriod(logEvery, func() {
		w.log.Error(err, "entry write failed")
	})
}

// ForceFlush flushes the stream's buffer.
func (w *WriterSink) ForceFlush(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream.Flush()
}
