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

package sink_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/sink"
)

// intEntry is an identifiable entry; delivered slices compare by
// value.
type intEntry int

func (e intEntry) Write(w statline.EntryWriter) {
	w.Value("n", statline.Uint(uint64(e)))
}

// scriptStream is an EntryStream double. It records what was emitted
// and flushed, can hold deliveries behind a gate, and can fail chosen
// entries.
type scriptStream struct {
	emitErr  func(statline.Entry) error
	flushErr error

	entered chan struct{} // signaled at the top of Emit, when non-nil
	gate    chan struct{} // Emit waits on this until closed, when non-nil

	mu      sync.Mutex
	entries []statline.Entry
	flushes int
}

func newGateStream() *scriptStream {
	return &scriptStream{
		entered: make(chan struct{}, 64),
		gate:    make(chan struct{}),
	}
}

func (s *scriptStream) Emit(e statline.Entry) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.emitErr != nil {
		if err := s.emitErr(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *scriptStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.flushErr
}

func (s *scriptStream) got() []statline.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]statline.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *scriptStream) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func TestQueueDeliversInOrder(t *testing.T) {
	s := &scriptStream{}
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{Name: "order"},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	var want []statline.Entry
	for i := 0; i < 100; i++ {
		q.Append(intEntry(i))
		want = append(want, intEntry(i))
	}
	require.NoError(t, q.ForceFlush(context.Background()))
	require.Equal(t, want, s.got())
	require.GreaterOrEqual(t, s.flushCount(), 1)
	require.Equal(t, uint64(100), q.Emitted())
	require.Equal(t, uint64(0), q.Dropped())

	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueDropOldestEvicts(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{Capacity: 2},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered // delivery is inside Emit(0); the channel is empty
	q.Append(intEntry(1))
	q.Append(intEntry(2))
	q.Append(intEntry(3)) // evicts 1
	q.Append(intEntry(4)) // evicts 2
	require.Equal(t, uint64(2), q.Dropped())

	close(s.gate)
	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(3), intEntry(4)}, s.got())
	require.Equal(t, uint64(3), q.Emitted())
}

func TestQueueRejectKeepsOldest(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s,
		sink.QueueConfig{Capacity: 1, Policy: sink.PolicyReject},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered
	q.Append(intEntry(1))
	require.ErrorIs(t, q.TryAppend(intEntry(2)), sink.ErrQueueFull)
	q.Append(intEntry(3)) // also rejected, silently
	require.Equal(t, uint64(2), q.Dropped())

	close(s.gate)
	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(1)}, s.got())
}

func TestQueueBlockTimesOut(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{
		Capacity:     1,
		Policy:       sink.PolicyBlock,
		BlockTimeout: 20 * time.Millisecond,
		// Keep the periodic flush out of the way.
		FlushInterval: 59 * time.Second,
	})
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered
	q.Append(intEntry(1))
	require.ErrorIs(t, q.TryAppend(intEntry(2)), sink.ErrQueueFull)
	require.Equal(t, uint64(1), q.Dropped())

	close(s.gate)
	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(1)}, s.got())
}

func TestQueueBlockWaitsForSpace(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{
		Capacity:      1,
		Policy:        sink.PolicyBlock,
		BlockTimeout:  5 * time.Second,
		FlushInterval: 59 * time.Second,
	})
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered
	q.Append(intEntry(1))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(s.gate)
	}()
	require.NoError(t, q.TryAppend(intEntry(2)))
	require.Equal(t, uint64(0), q.Dropped())

	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(1), intEntry(2)}, s.got())
}

func TestQueuePeriodicFlush(t *testing.T) {
	s := &scriptStream{}
	mc := clock.NewMock()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{FlushInterval: time.Second},
		sink.WithQueueClock(mc))
	require.NoError(t, err)
	defer q.Shutdown(context.Background())

	q.Append(intEntry(7))
	// The tick drains the queue before flushing, so the entry lands no
	// matter which select arm wins.
	require.Eventually(t, func() bool {
		mc.Add(time.Second)
		return s.flushCount() >= 1 && len(s.got()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestQueueForceFlushHonorsContext(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered // delivery is stuck; flush requests cannot be served

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.ForceFlush(ctx), context.DeadlineExceeded)

	close(s.gate)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueShutdownIdempotent(t *testing.T) {
	s := &scriptStream{}
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	q.Append(intEntry(1))
	q.Append(intEntry(2))
	require.NoError(t, q.Shutdown(context.Background()))
	require.NoError(t, q.Shutdown(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(1), intEntry(2)}, s.got())

	// Intake is closed: appends drop and count, TryAppend says so.
	q.Append(intEntry(3))
	require.ErrorIs(t, q.TryAppend(intEntry(4)), sink.ErrQueueFull)
	require.Equal(t, uint64(2), q.Dropped())
	require.NoError(t, q.ForceFlush(context.Background()))
}

func TestQueueShutdownTimeout(t *testing.T) {
	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{ShutdownTimeout: 25 * time.Millisecond},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)
	defer close(s.gate)

	q.Append(intEntry(0))
	<-s.entered // delivery is stuck mid-write

	err = q.Shutdown(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueEntryErrorsAreIsolated(t *testing.T) {
	s := &scriptStream{
		emitErr: func(e statline.Entry) error {
			switch e {
			case intEntry(1):
				return statline.Invalid("bad entry")
			case intEntry(2):
				return errors.New("pipe burst")
			}
			return nil
		},
	}
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{},
		sink.WithQueueClock(clock.NewMock()),
		sink.WithQueueLogger(zapr.NewLogger(zaptest.NewLogger(t))))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		q.Append(intEntry(i))
	}
	require.NoError(t, q.ForceFlush(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(3)}, s.got())
	require.Equal(t, uint64(2), q.Emitted())
	require.Equal(t, uint64(1), q.ValidationErrors())
	require.Equal(t, uint64(1), q.IOErrors())
	require.Equal(t, uint64(0), q.Dropped())

	// The loop is still alive after both failures.
	q.Append(intEntry(5))
	require.NoError(t, q.ForceFlush(context.Background()))
	require.Equal(t, uint64(3), q.Emitted())

	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueFlushErrorsSurface(t *testing.T) {
	s := &scriptStream{flushErr: errors.New("disk full")}
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{},
		sink.WithQueueClock(clock.NewMock()),
		sink.WithQueueLogger(zapr.NewLogger(zaptest.NewLogger(t))))
	require.NoError(t, err)

	q.Append(intEntry(0))
	require.ErrorContains(t, q.ForceFlush(context.Background()), "disk full")
	require.GreaterOrEqual(t, q.IOErrors(), uint64(1))

	require.ErrorContains(t, q.Shutdown(context.Background()), "disk full")
}

func TestQueueStatsPublished(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats, err := sink.NewQueueStats(reg)
	require.NoError(t, err)

	s := newGateStream()
	q, err := sink.NewBackgroundQueue(s,
		sink.QueueConfig{Name: "q1", Capacity: 1, Policy: sink.PolicyReject},
		sink.WithQueueClock(clock.NewMock()),
		sink.WithQueueStats(stats))
	require.NoError(t, err)

	q.Append(intEntry(0))
	<-s.entered
	q.Append(intEntry(1))
	require.ErrorIs(t, q.TryAppend(intEntry(2)), sink.ErrQueueFull)

	close(s.gate)
	require.NoError(t, q.Shutdown(context.Background()))

	expected := `
# HELP statline_queue_dropped_total Entries discarded before delivery: evictions, rejects, block timeouts, appends after shutdown.
# TYPE statline_queue_dropped_total counter
statline_queue_dropped_total{queue="q1"} 1
# HELP statline_queue_emitted_total Entries the output stream accepted.
# TYPE statline_queue_emitted_total counter
statline_queue_emitted_total{queue="q1"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"statline_queue_emitted_total", "statline_queue_dropped_total"))
}

func TestQueueRequiresStream(t *testing.T) {
	_, err := sink.NewBackgroundQueue(nil, sink.QueueConfig{})
	require.Error(t, err)

	var verr *statline.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestWriterSinkWritesInline(t *testing.T) {
	s := &scriptStream{
		emitErr: func(e statline.Entry) error {
			if e == intEntry(1) {
				return statline.Invalid("bad entry")
			}
			return nil
		},
	}
	w := sink.NewWriterSink(s)

	w.Append(intEntry(0))
	w.Append(intEntry(1)) // rejected; logged, not propagated
	w.Append(intEntry(2))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(2)}, s.got())

	require.NoError(t, w.ForceFlush(context.Background()))
	require.Equal(t, 1, s.flushCount())
}

func TestRecorderCapturesEntries(t *testing.T) {
	var r sink.Recorder
	r.Append(intEntry(1))
	r.Append(intEntry(2))
	require.Equal(t, []statline.Entry{intEntry(1), intEntry(2)}, r.Entries())

	require.NoError(t, r.ForceFlush(context.Background()))
	require.Equal(t, 1, r.Flushes())

	r.Reset()
	require.Empty(t, r.Entries())
	require.Equal(t, 0, r.Flushes())
}
