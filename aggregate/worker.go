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
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultWorkerCapacity = 1024
	defaultWorkerInterval = time.Second
)

// WorkerOption configures a Worker.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	capacity int
	interval time.Duration
	clock    clock.Clock
}

// WithWorkerCapacity sets the insert channel capacity.
func WithWorkerCapacity(n int) WorkerOption {
	return func(c *workerConfig) {
		c.capacity = n
	}
}

// WithWorkerInterval sets how often the inner aggregator flushes.
func WithWorkerInterval(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		c.interval = d
	}
}

// WithWorkerClock substitutes the flush timer's clock, for tests.
func WithWorkerClock(clk clock.Clock) WorkerOption {
	return func(c *workerConfig) {
		c.clock = clk
	}
}

// Worker moves aggregation onto its own goroutine: Insert hands the
// value to a bounded channel and returns, the goroutine folds values
// into the inner aggregator and flushes it every interval and at
// Close. When the channel is full Insert drops the value and counts
// it; insertion must never stall the unit of work.
type Worker[T any] struct {
	ch        chan T
	flushReq  chan chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   uint64
}

var _ FlushSink[int64] = (*Worker[int64])(nil)

// NewWorker starts the goroutine owning inner. The worker assumes
// sole ownership: no other goroutine may touch inner afterward.
func NewWorker[T any](inner FlushSink[T], opts ...WorkerOption) *Worker[T] {
	cfg := workerConfig{
		capacity: defaultWorkerCapacity,
		interval: defaultWorkerInterval,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.capacity < 1 {
		cfg.capacity = 1
	}
	w := &Worker[T]{
		ch:       make(chan T, cfg.capacity),
		flushReq: make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run(inner, cfg)
	return w
}

func (w *Worker[T]) run(inner FlushSink[T], cfg workerConfig) {
	defer close(w.done)
	ticker := cfg.clock.Ticker(cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case v := <-w.ch:
			inner.Insert(v)
		case <-ticker.C:
			w.drain(inner)
			inner.Flush()
		case ack := <-w.flushReq:
			w.drain(inner)
			inner.Flush()
			close(ack)
		case <-w.stop:
			w.drain(inner)
			inner.Close()
			return
		}
	}
}

// drain folds in everything already queued, without blocking.
func (w *Worker[T]) drain(inner FlushSink[T]) {
	for {
		select {
		case v := <-w.ch:
			inner.Insert(v)
		default:
			return
		}
	}
}

// Insert queues one value. Drops and counts when the worker is
// saturated or closed.
func (w *Worker[T]) Insert(t T) {
	select {
	case <-w.stop:
		atomic.AddUint64(&w.dropped, 1)
		return
	default:
	}
	select {
	case w.ch <- t:
	default:
		atomic.AddUint64(&w.dropped, 1)
	}
}

// Flush waits for everything queued so far to be folded in and the
// inner aggregator to emit. Returns immediately during shutdown.
func (w *Worker[T]) Flush() {
	ack := make(chan struct{})
	select {
	case w.flushReq <- ack:
		<-ack
	case <-w.stop:
	}
}

// Close folds in the remaining queue, closes the inner aggregator,
// and joins the goroutine. Safe to call more than once.
func (w *Worker[T]) Close() {
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done
	})
}

// Dropped returns how many inserts were discarded.
func (w *Worker[T]) Dropped() uint64 {
	return atomic.LoadUint64(&w.dropped)
}
