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
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/sink"
)

// Each test attaches under its own name; Named registrations live for
// the whole process.

func TestNamedReturnsSameGlobal(t *testing.T) {
	require.Same(t, sink.Named("same"), sink.Named("same"))
	require.NotSame(t, sink.Named("same"), sink.Named("other"))
}

func TestGlobalRoutesToAttached(t *testing.T) {
	g := sink.Named("routes")
	rec := &sink.Recorder{}

	h := g.Attach(rec)
	g.Append(intEntry(1))
	require.True(t, g.TryAppend(intEntry(2)))
	require.Equal(t, []statline.Entry{intEntry(1), intEntry(2)}, rec.Entries())

	s, ok := g.TrySink()
	require.True(t, ok)
	require.Same(t, rec, s)

	require.NoError(t, h.Detach(context.Background()))
	require.Equal(t, 1, rec.Flushes())

	// Detached: appends drop and count, the name is free again.
	g.Append(intEntry(3))
	require.False(t, g.TryAppend(intEntry(4)))
	require.Equal(t, uint64(1), g.Dropped())
	require.Len(t, rec.Entries(), 2)

	h2 := g.Attach(rec)
	require.NoError(t, h2.Detach(context.Background()))
}

func TestGlobalAttachTwicePanics(t *testing.T) {
	g := sink.Named("exclusive")
	h := g.Attach(&sink.Recorder{})
	defer h.Detach(context.Background())

	require.PanicsWithValue(t, `statline: sink "exclusive" already attached`, func() {
		g.Attach(&sink.Recorder{})
	})
}

func TestGlobalDetachIdempotent(t *testing.T) {
	g := sink.Named("detach-twice")
	rec := &sink.Recorder{}
	h := g.Attach(rec)

	require.NoError(t, h.Detach(context.Background()))
	require.NoError(t, h.Detach(context.Background()))
	require.Equal(t, 1, rec.Flushes())
}

func TestGlobalForgetKeepsAttachment(t *testing.T) {
	g := sink.Named("forgotten")
	rec := &sink.Recorder{}

	g.Attach(rec).Forget()
	g.Append(intEntry(1))
	require.Len(t, rec.Entries(), 1)

	// Forget is not Detach: the name stays taken.
	require.Panics(t, func() { g.Attach(&sink.Recorder{}) })
}

func TestGlobalTestSinkOverrides(t *testing.T) {
	g := sink.Named("override")
	base := &sink.Recorder{}
	h := g.Attach(base)
	defer h.Detach(context.Background())

	first := &sink.Recorder{}
	second := &sink.Recorder{}

	g1 := g.SetTestSink(first)
	g.Append(intEntry(1))

	g2 := g.SetTestSink(second)
	g.Append(intEntry(2))

	// Closing the older override leaves the newest in charge.
	g1.Close()
	g.Append(intEntry(3))

	g2.Close()
	g2.Close()
	g.Append(intEntry(4))

	require.Equal(t, []statline.Entry{intEntry(1)}, first.Entries())
	require.Equal(t, []statline.Entry{intEntry(2), intEntry(3)}, second.Entries())
	require.Equal(t, []statline.Entry{intEntry(4)}, base.Entries())
}

func TestGlobalOverrideWithoutAttachment(t *testing.T) {
	g := sink.Named("override-only")
	rec := &sink.Recorder{}

	guard := g.SetTestSink(rec)
	g.Append(intEntry(1))
	guard.Close()
	g.Append(intEntry(2))

	require.Equal(t, []statline.Entry{intEntry(1)}, rec.Entries())
	require.Equal(t, uint64(1), g.Dropped())
}

func TestGlobalForceFlush(t *testing.T) {
	g := sink.Named("flush")
	require.NoError(t, g.ForceFlush(context.Background()))

	rec := &sink.Recorder{}
	h := g.Attach(rec)
	defer h.Detach(context.Background())
	require.NoError(t, g.ForceFlush(context.Background()))
	require.Equal(t, 1, rec.Flushes())
}

func TestGlobalConcurrentOverrides(t *testing.T) {
	g := sink.Named("concurrent")
	base := &sink.Recorder{}
	h := g.Attach(base)
	defer h.Detach(context.Background())

	const workers = 8
	const perWorker = 200

	recs := make([]*sink.Recorder, workers)
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		recs[i] = &sink.Recorder{}
		eg.Go(func() error {
			guard := g.SetTestSink(recs[i])
			for j := 0; j < perWorker; j++ {
				g.Append(intEntry(j))
			}
			guard.Close()
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	// Every append had some target: overrides raced, the attachment
	// backstopped, nothing was dropped.
	total := len(base.Entries())
	for _, r := range recs {
		total += len(r.Entries())
	}
	require.Equal(t, workers*perWorker, total)
	require.Equal(t, uint64(0), g.Dropped())
}

func TestGlobalDrivesBackgroundQueue(t *testing.T) {
	s := &scriptStream{}
	q, err := sink.NewBackgroundQueue(s, sink.QueueConfig{Name: "wired"},
		sink.WithQueueClock(clock.NewMock()))
	require.NoError(t, err)

	g := sink.Named("wired")
	h := g.Attach(q)

	for i := 0; i < 3; i++ {
		g.Append(intEntry(i))
	}
	// Detach flushes through to the stream before releasing the name.
	require.NoError(t, h.Detach(context.Background()))
	require.Equal(t, []statline.Entry{intEntry(0), intEntry(1), intEntry(2)}, s.got())

	require.NoError(t, q.Shutdown(context.Background()))
}

func TestGlobalAppendGuard(t *testing.T) {
	g := sink.Named("guard")
	rec := &sink.Recorder{}
	h := g.Attach(rec)
	defer h.Detach(context.Background())

	func() {
		guard := statline.DeferAppend(g, intEntry(9))
		defer guard.Close()
	}()
	require.Equal(t, []statline.Entry{intEntry(9)}, rec.Entries())
}
