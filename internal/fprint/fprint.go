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

// Package fprint provides the fingerprint functions the keyed
// aggregator uses for bucket lookup.
package fprint // import "github.com/statline/go-statline/internal/fprint"

import (
	"unsafe"

	// farmhash is not load-bearing as a stable hash: bucket
	// fingerprints never leave the process, so any fast 64-bit
	// fingerprint function would do here.
	farm "github.com/dgryski/go-farm"
)

// Mix combines multiple fingerprints into one.
func Mix(is ...uint64) uint64 {
	if len(is) == 0 {
		return 0
	}
	acc := is[0]
	for _, i := range is[1:] {
		acc = mix(acc, i)
	}
	return acc
}

// Borrowed from farmhash.
func mix(x, y uint64) uint64 {
	const mul uint64 = 0x9ddfea08eb382d69
	a := (x ^ y) * mul
	a ^= a >> 47
	b := (y ^ a) * mul
	b ^= b >> 47
	b *= mul
	return b
}

// String fingerprints s without copying it. go-farm does not
// mutate the slice it is handed, so a zero-copy view of the
// string's backing array is safe to pass.
func String(s string) uint64 {
	return farm.Fingerprint64(unsafeStringToBytes(s))
}

func Uint64(i uint64) uint64 {
	return i
}

func Bool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// unsafeStringToBytes returns a zero-copy []byte view of s. The
// result must never be mutated: strings are immutable and may be
// interned in maps.
func unsafeStringToBytes(s string) []byte {
	const max = 0x7fff0000 // ~2 GiB
	if len(s) == 0 || len(s) > max {
		// Fall back for the empty string (nil is fine to hash)
		// and for absurd lengths where the unsafe view is not
		// worth reasoning about.
		return []byte(s)
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
