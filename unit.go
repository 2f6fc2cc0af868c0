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

// Unit is a metric's unit of measure, carried as the wire-format name.
// Any string converts to a Unit; Valid reports whether the backend's
// metric extraction understands it.
type Unit string

const (
	UnitNone    Unit = "None"
	UnitCount   Unit = "Count"
	UnitPercent Unit = "Percent"

	UnitSeconds      Unit = "Seconds"
	UnitMilliseconds Unit = "Milliseconds"
	UnitMicroseconds Unit = "Microseconds"

	UnitBytes     Unit = "Bytes"
	UnitKilobytes Unit = "Kilobytes"
	UnitMegabytes Unit = "Megabytes"
	UnitGigabytes Unit = "Gigabytes"
	UnitTerabytes Unit = "Terabytes"

	UnitBits     Unit = "Bits"
	UnitKilobits Unit = "Kilobits"
	UnitMegabits Unit = "Megabits"
	UnitGigabits Unit = "Gigabits"
	UnitTerabits Unit = "Terabits"

	UnitBytesPerSecond     Unit = "Bytes/Second"
	UnitKilobytesPerSecond Unit = "Kilobytes/Second"
	UnitMegabytesPerSecond Unit = "Megabytes/Second"
	UnitGigabytesPerSecond Unit = "Gigabytes/Second"
	UnitTerabytesPerSecond Unit = "Terabytes/Second"

	UnitBitsPerSecond     Unit = "Bits/Second"
	UnitKilobitsPerSecond Unit = "Kilobits/Second"
	UnitMegabitsPerSecond Unit = "Megabits/Second"
	UnitGigabitsPerSecond Unit = "Gigabits/Second"
	UnitTerabitsPerSecond Unit = "Terabits/Second"

	UnitCountPerSecond Unit = "Count/Second"
)

var knownUnits = map[Unit]struct{}{
	UnitNone: {}, UnitCount: {}, UnitPercent: {},
	UnitSeconds: {}, UnitMilliseconds: {}, UnitMicroseconds: {},
	UnitBytes: {}, UnitKilobytes: {}, UnitMegabytes: {}, UnitGigabytes: {}, UnitTerabytes: {},
	UnitBits: {}, UnitKilobits: {}, UnitMegabits: {}, UnitGigabits: {}, UnitTerabits: {},
	UnitBytesPerSecond: {}, UnitKilobytesPerSecond: {}, UnitMegabytesPerSecond: {},
	UnitGigabytesPerSecond: {}, UnitTerabytesPerSecond: {},
	UnitBitsPerSecond: {}, UnitKilobitsPerSecond: {}, UnitMegabitsPerSecond: {},
	UnitGigabitsPerSecond: {}, UnitTerabitsPerSecond: {},
	UnitCountPerSecond: {},
}

// Valid reports whether u is one of the names the wire format's metric
// extraction recognizes. Unknown units still encode; validating
// formatters diagnose them.
func (u Unit) Valid() bool {
	_, ok := knownUnits[u]
	return ok
}

// String returns the wire-format name.
func (u Unit) String() string { return string(u) }
