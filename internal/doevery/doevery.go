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

// Package doevery provides per-call-site rate limiting, used to keep
// per-entry delivery diagnostics from flooding the log.
package doevery // import "github.com/statline/go-statline/internal/doevery"

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

var (
	mu sync.Mutex

	// lastInvocation records when the function passed at each
	// call site last ran.
	lastInvocation = make(map[callSite]time.Time)
)

// callSite identifies one line of source code. The program counter
// is not usable as a key because inlining duplicates it.
type callSite struct {
	file string
	line int
}

// TimePeriod invokes f at most once per dur for each distinct call
// site. The limit is global across goroutines, not per goroutine.
// Call sites should pass the same duration on every call.
//
// Safe for concurrent use.
func TimePeriod(dur time.Duration, f func()) {
	if dur < 0 {
		panic(fmt.Sprintf("negative duration unsupported: %v", dur))
	}
	// Skip 0 is TimePeriod itself; skip 1 is the caller.
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		// Unknown caller. Fail open.
		f()
		return
	}

	key := callSite{file: file, line: line}

	invoke := func() bool {
		mu.Lock()
		defer mu.Unlock()

		prev, seen := lastInvocation[key]
		due := !seen || time.Since(prev) > dur
		if due {
			lastInvocation[key] = time.Now()
		}
		return due
	}()

	if invoke {
		f()
	}
}
