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

import "time"

// Entry is one unit of work's worth of fields: an optional timestamp,
// named values, per-entry configuration, and nested sample groups.
// Write must describe the same content every time it is called; the
// pipeline may visit an entry more than once.
type Entry interface {
	Write(w EntryWriter)
}

// EntryWriter receives an entry's content in a single pass. Field
// order is the call order and is preserved on the wire.
type EntryWriter interface {
	// Timestamp records the entry's timestamp. At most one call is
	// valid; a second invalidates the whole entry. Entries without
	// a timestamp are stamped at format time.
	Timestamp(t time.Time)

	// Value records one named field. Nil values are ignored.
	Value(name string, v Value)

	// Config attaches per-entry configuration.
	Config(c EntryConfig)

	// Group records a nested sample group.
	Group(g SampleGroup)
}

// SampleGroup nests a sub-entry inside a parent entry. A value-enum
// group encodes as a nested object under Name; otherwise the group
// becomes an independent record that inherits the parent's timestamp
// when it carries none of its own.
type SampleGroup struct {
	Name      string
	Entry     Entry
	ValueEnum bool
}

// EntryConfig is per-entry configuration understood by formats.
// Implementations live in this package; the interface is closed.
type EntryConfig interface {
	entryConfig()
}

// AllowSplitEntries permits a format to emit one source entry as
// multiple wire records, which is how per-value dimensions are
// represented.
type AllowSplitEntries struct{}

// EntryDimensions extends the format's configured dimension sets for
// this entry only. Each set lists field names that must be present as
// string values.
type EntryDimensions struct {
	Sets [][]string
}

// AllowUnroutableEntries keeps dimension sets whose members are absent
// from the entry instead of dropping them with a diagnostic.
type AllowUnroutableEntries struct{}

func (AllowSplitEntries) entryConfig()      {}
func (EntryDimensions) entryConfig()        {}
func (AllowUnroutableEntries) entryConfig() {}

var (
	_ EntryConfig = AllowSplitEntries{}
	_ EntryConfig = EntryDimensions{}
	_ EntryConfig = AllowUnroutableEntries{}
)

// EntryFunc adapts a function to the Entry interface.
type EntryFunc func(w EntryWriter)

func (f EntryFunc) Write(w EntryWriter) { f(w) }

// Merge combines entries into one; parts are written in order. With
// duplicate field names the earliest write wins, so the most specific
// entry belongs first.
func Merge(entries ...Entry) Entry {
	return mergedEntry(entries)
}

type mergedEntry []Entry

func (m mergedEntry) Write(w EntryWriter) {
	for _, e := range m {
		if e != nil {
			e.Write(w)
		}
	}
}
