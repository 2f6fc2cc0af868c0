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

// Package statline defines the data model of a unit-of-work metrics
// pipeline: values, entries, formats, streams, and sinks.
//
// An application assembles an Entry per unit of work (one request, one
// job run) and appends it to an EntrySink. The sink hands entries to an
// EntryStream, which formats each one into a wire record and writes it
// to a destination. The subpackages provide the moving parts:
//
//   - emf formats entries as CloudWatch embedded-metric JSON lines.
//   - sink provides the background delivery queue and process-global
//     sink attachment.
//   - aggregate merges many entries into one before they reach a sink.
//   - histogram provides bounded and exponential distribution values.
//
// Entries and values are write-once: consumers observe them through the
// EntryWriter and ValueWriter visitors and never mutate them. All
// failure handling is partial and per entry; a malformed field never
// takes down the pipeline.
package statline // import "github.com/statline/go-statline"
