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

package doevery

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimited(t *testing.T) {
	var invocations int
	for i := 0; i < 50; i++ {
		TimePeriod(time.Minute, func() {
			invocations++
		})
	}
	require.Equal(t, 1, invocations)
}

func TestDistinctCallSites(t *testing.T) {
	var a, b int
	for i := 0; i < 10; i++ {
		TimePeriod(time.Minute, func() { a++ })
		TimePeriod(time.Minute, func() { b++ })
	}
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}

func TestZeroDuration(t *testing.T) {
	var invocations int
	for i := 0; i < 5; i++ {
		TimePeriod(0, func() {
			invocations++
		})
		time.Sleep(time.Millisecond)
	}
	// A zero period means every call is due.
	require.Equal(t, 5, invocations)
}

func TestConcurrentSameSite(t *testing.T) {
	var wg sync.WaitGroup
	var invocations int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				TimePeriod(time.Minute, func() {
					atomic.AddInt64(&invocations, 1)
				})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), atomic.LoadInt64(&invocations))
}

func TestNegativePanics(t *testing.T) {
	require.Panics(t, func() {
		TimePeriod(-time.Second, func() {})
	})
}
