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

package emf // import "github.com/statline/go-statline/emf"

import (
	"errors"
	"time"

	"github.com/statline/go-statline"
)

// renderNested renders a value-enum sample group as a JSON object.
// Nested fields are plain record data: CloudWatch extracts metrics
// from top-level properties only, so no directives are produced.
func (r *recordState) renderNested(e statline.Entry, depth int) []byte {
	n := &nestedState{rec: r, depth: depth, buf: []byte{'{'}, seen: make(map[string]bool)}
	e.Write(n)
	return append(n.buf, '}')
}

type nestedState struct {
	rec   *recordState
	depth int
	buf   []byte
	seen  map[string]bool
	n     int
}

var _ statline.EntryWriter = (*nestedState)(nil)

func (n *nestedState) Timestamp(time.Time) {
	n.rec.st.diag(statline.Invalid("timestamp ignored in nested group"))
}

func (n *nestedState) Config(statline.EntryConfig) {
	n.rec.st.diag(statline.Invalid("config ignored in nested group"))
}

func (n *nestedState) Value(name string, v statline.Value) {
	if v == nil {
		return
	}
	if n.rec.st.f.cfg.Validation {
		if err := validateName(name); err != nil {
			n.rec.st.diag(err.ForField(name))
			return
		}
	}
	v.WriteValue(&nestedValue{group: n, name: name})
}

func (n *nestedState) Group(g statline.SampleGroup) {
	if g.Entry == nil {
		return
	}
	if !g.ValueEnum {
		// Full-record groups surface as their own top-level records
		// regardless of where they were written.
		n.rec.groups = append(n.rec.groups, g)
		return
	}
	if n.rec.st.f.cfg.Validation {
		if err := validateName(g.Name); err != nil {
			n.rec.st.diag(err.ForField(g.Name))
			return
		}
	}
	if n.depth+1 >= maxGroupDepth {
		n.rec.st.diag(statline.Invalid("sample groups nested too deeply"))
		return
	}
	if !n.claim(g.Name) {
		return
	}
	n.field(g.Name, n.rec.renderNested(g.Entry, n.depth+1))
}

func (n *nestedState) claim(name string) bool {
	if n.seen[name] {
		n.rec.st.diag(statline.Invalid("duplicate field").ForField(name))
		return false
	}
	n.seen[name] = true
	return true
}

func (n *nestedState) field(name string, val []byte) {
	if n.n > 0 {
		n.buf = append(n.buf, ',')
	}
	n.n++
	n.buf = appendKey(n.buf, name)
	n.buf = append(n.buf, val...)
}

type nestedValue struct {
	group *nestedState
	name  string
	used  bool
}

var _ statline.ValueWriter = (*nestedValue)(nil)

func (v *nestedValue) spent() bool {
	if v.used {
		v.group.rec.st.diag(statline.Invalid("multiple values written").ForField(v.name))
		return true
	}
	v.used = true
	return false
}

func (v *nestedValue) String(s string) {
	if v.spent() {
		return
	}
	if !v.group.claim(v.name) {
		return
	}
	v.group.field(v.name, appendJSONString(nil, s))
}

func (v *nestedValue) Metric(obs []statline.Observation, unit statline.Unit, dims []statline.Dimension, flags statline.MetricFlags) {
	if v.spent() {
		return
	}
	if len(obs) == 0 {
		return
	}
	if len(dims) > 0 {
		v.group.rec.st.diag(statline.Invalid(
			"can't use per-metric dimensions in a nested group").ForField(v.name))
		return
	}
	if !v.group.claim(v.name) {
		return
	}
	val, ok := v.group.rec.st.renderMetricValue(v.name, obs)
	if !ok {
		return
	}
	v.group.field(v.name, val)
}

func (v *nestedValue) Error(err error) {
	if v.spent() || err == nil {
		return
	}
	var ve *statline.ValidationError
	if errors.As(err, &ve) {
		v.group.rec.st.diag(ve.ForField(v.name))
		return
	}
	v.group.rec.st.diag(statline.Invalid(err.Error()).ForField(v.name))
}
