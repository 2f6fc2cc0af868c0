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

// Package sink moves finished entries from the code that records them
// to the stream that writes them.
//
// BackgroundQueue is the workhorse: a bounded queue drained by a
// single delivery goroutine, so formatting and I/O never run on the
// caller's goroutine. Named globals decouple producers from the
// attachment point, letting application setup attach a queue once
// while libraries append through the name alone:
//
//	q, err := sink.NewBackgroundQueue(stream, sink.QueueConfig{})
//	if err != nil {
//		...
//	}
//	handle := sink.Named("service").Attach(q)
//	defer handle.Detach(ctx)
package sink // import "github.com/statline/go-statline/sink"

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/doevery"
)

// ErrQueueFull reports that TryAppend could not enqueue the entry.
var ErrQueueFull = errors.New("sink: queue full")

// logEvery rate-limits per-entry delivery diagnostics.
const logEvery = 10 * time.Second

// QueueOption configures a BackgroundQueue beyond its QueueConfig.
type QueueOption func(*queueOptions)

type queueOptions struct {
	logger logr.Logger
	clock  clock.Clock
	stats  *QueueStats
}

// WithQueueLogger sets the logger for delivery diagnostics. Defaults
// to the package-wide logger.
func WithQueueLogger(l logr.Logger) QueueOption {
	return func(o *queueOptions) {
		o.logger = l
	}
}

// WithQueueClock substitutes the flush ticker's clock, for tests.
func WithQueueClock(clk clock.Clock) QueueOption {
	return func(o *queueOptions) {
		o.clock = clk
	}
}

// WithQueueStats publishes the queue's counters and depth through s,
// labeled by the queue's Name.
func WithQueueStats(s *QueueStats) QueueOption {
	return func(o *queueOptions) {
		o.stats = s
	}
}

// BackgroundQueue buffers entries and delivers them to an EntryStream
// on its own goroutine. Appends are cheap and, except under
// PolicyBlock, never wait; when the queue saturates the configured
// Policy decides what gets dropped. The stream's buffer is flushed
// every FlushInterval and on ForceFlush and Shutdown.
//
// The queue assumes sole ownership of the stream: no other goroutine
// may call it after the queue starts.
type BackgroundQueue struct {
	cfg  QueueConfig
	log  logr.Logger
	clk  clock.Clock
	inst *queueInstruments

	stream   statline.EntryStream
	ch       chan statline.Entry
	flushReq chan chan error
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	dropped  uint64
	emitted  uint64
	ioErrs   uint64
	valErrs  uint64
	finalErr error // written by run before done closes

	shutdownErr error // set inside stopOnce
}

var _ statline.EntrySink = (*BackgroundQueue)(nil)

// NewBackgroundQueue validates cfg, takes ownership of stream, and
// starts the delivery goroutine. The queue must be shut down to
// release it.
func NewBackgroundQueue(stream statline.EntryStream, cfg QueueConfig, opts ...QueueOption) (*BackgroundQueue, error) {
	if stream == nil {
		return nil, statline.Invalid("queue stream can't be nil")
	}
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	o := queueOptions{
		logger: statline.Logger(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	q := &BackgroundQueue{
		cfg:      cfg,
		log:      o.logger.WithValues("queue", cfg.Name),
		clk:      o.clock,
		inst:     o.stats.instruments(cfg.Name),
		stream:   stream,
		ch:       make(chan statline.Entry, cfg.Capacity),
		flushReq: make(chan chan error),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q, nil
}

func (q *BackgroundQueue) run() {
	defer close(q.done)
	ticker := q.clk.Ticker(q.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-q.ch:
			q.deliver(e)
		case <-ticker.C:
			q.drain()
			q.flush()
		case ack := <-q.flushReq:
			q.drain()
			ack <- q.flush()
		case <-q.stop:
			q.drain()
			q.finalErr = q.flush()
			return
		}
		q.observeDepth()
	}
}

// drain delivers everything already queued, without blocking.
func (q *BackgroundQueue) drain() {
	for {
		select {
		case e := <-q.ch:
			q.deliver(e)
		default:
			return
		}
	}
}

// deliver hands one entry to the stream. Entry errors are counted and
// logged, never propagated: one bad entry must not take the delivery
// loop or its neighbors down.
func (q *BackgroundQueue) deliver(e statline.Entry) {
	err := q.stream.Emit(e)
	if err == nil {
		atomic.AddUint64(&q.emitted, 1)
		q.inst.incEmitted()
		return
	}
	var verr *statline.ValidationError
	if errors.As(err, &verr) {
		atomic.AddUint64(&q.valErrs, 1)
		q.inst.incValidationErrors()
		doevery.TimePeriod(logEvery, func() {
			q.log.Info("dropped invalid entry", "error", err)
		})
		return
	}
	atomic.AddUint64(&q.ioErrs, 1)
	q.inst.incIOErrors()
	doevery.TimePeriod(logEvery, func() {
		q.log.Error(err, "entry write failed")
	})
}

func (q *BackgroundQueue) flush() error {
	err := q.stream.Flush()
	if err != nil {
		atomic.AddUint64(&q.ioErrs, 1)
		q.inst.incIOErrors()
		doevery.TimePeriod(logEvery, func() {
			q.log.Error(err, "flush failed")
		})
	}
	return err
}

func (q *BackgroundQueue) observeDepth() {
	q.inst.setLength(len(q.ch))
}

func (q *BackgroundQueue) drop(n int) {
	atomic.AddUint64(&q.dropped, uint64(n))
	q.inst.incDropped(n)
}

// Append queues one entry for delivery. It never returns an error and
// never panics; when the queue cannot take the entry the Policy
// decides what is dropped, and the drop is counted.
func (q *BackgroundQueue) Append(e statline.Entry) {
	_ = q.append(e)
}

// TryAppend is Append that reports ErrQueueFull when the entry was not
// enqueued, so callers that prefer backpressure over silent drops can
// tell.
func (q *BackgroundQueue) TryAppend(e statline.Entry) error {
	return q.append(e)
}

func (q *BackgroundQueue) append(e statline.Entry) error {
	if e == nil {
		return nil
	}
	select {
	case <-q.stop:
		q.drop(1)
		return ErrQueueFull
	default:
	}

	switch q.cfg.Policy {
	case PolicyReject:
		select {
		case q.ch <- e:
			return nil
		default:
			q.drop(1)
			return ErrQueueFull
		}
	case PolicyBlock:
		timer := q.clk.Timer(q.cfg.BlockTimeout)
		defer timer.Stop()
		select {
		case q.ch <- e:
			return nil
		case <-timer.C:
			q.drop(1)
			return ErrQueueFull
		case <-q.stop:
			q.drop(1)
			return ErrQueueFull
		}
	default: // PolicyDropOldest
		for {
			select {
			case q.ch <- e:
				return nil
			default:
			}
			// Full: evict the oldest and retry. The eviction may lose
			// the race to the delivery goroutine, in which case there
			// is room again and nothing was dropped.
			select {
			case <-q.ch:
				q.drop(1)
			default:
			}
		}
	}
}

// ForceFlush delivers everything appended before the call and flushes
// the stream, waiting up to ctx. During and after Shutdown it returns
// nil immediately; the shutdown drain covers it.
func (q *BackgroundQueue) ForceFlush(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case q.flushReq <- ack:
		select {
		case err := <-ack:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-q.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake, drains what is queued, flushes, and joins the
// delivery goroutine. Appends racing or following Shutdown are dropped
// and counted. The drain is bounded by ctx, or by ShutdownTimeout when
// ctx has no deadline; on expiry the goroutine is abandoned mid-write
// and the context error is reported alongside any flush error.
//
// Safe to call more than once; later calls return the first result.
func (q *BackgroundQueue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, q.cfg.ShutdownTimeout)
			defer cancel()
		}
		close(q.stop)
		select {
		case <-q.done:
			q.shutdownErr = q.finalErr
		case <-ctx.Done():
			q.shutdownErr = multierr.Append(q.shutdownErr, ctx.Err())
		}
	})
	return q.shutdownErr
}

// Dropped returns how many entries were discarded: evictions, rejects,
// block timeouts, and appends after Shutdown.
func (q *BackgroundQueue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

// Emitted returns how many entries the stream accepted.
func (q *BackgroundQueue) Emitted() uint64 {
	return atomic.LoadUint64(&q.emitted)
}

// IOErrors returns how many deliveries and flushes failed with
// non-validation errors.
func (q *BackgroundQueue) IOErrors() uint64 {
	return atomic.LoadUint64(&q.ioErrs)
}

// ValidationErrors returns how many entries the stream rejected as
// invalid.
func (q *BackgroundQueue) ValidationErrors() uint64 {
	return atomic.LoadUint64(&q.valErrs)
}
