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
	"math"
	"sort"
	"strings"
	"time"

	"github.com/statline/go-statline"
)

// maxGroupDepth bounds recursion on cyclic sample group graphs.
const maxGroupDepth = 16

// encodeState accumulates every record produced by one entry so the
// destination sees a single write.
type encodeState struct {
	f       *Formatter
	sampled bool
	mult    uint64

	out []byte
}

func newEncodeState(f *Formatter, sampled bool, mult uint64) *encodeState {
	return &encodeState{f: f, sampled: sampled, mult: mult, out: f.buf[:0]}
}

func (st *encodeState) diag(err error) {
	st.f.cfg.Diagnostics(err)
}

// encodeEntry renders e and, recursively, its full-record sample
// groups. Sub-entries without a timestamp inherit the parent's.
func (st *encodeState) encodeEntry(e statline.Entry, inherit time.Time, depth int) error {
	rec := newRecordState(st, inherit)
	e.Write(rec)
	if rec.tsErr {
		return statline.Invalid("multiple timestamps written")
	}
	rec.assemble()
	if depth >= maxGroupDepth {
		if len(rec.groups) > 0 {
			st.diag(statline.Invalid("sample groups nested too deeply"))
		}
		return nil
	}
	for _, g := range rec.groups {
		if err := st.encodeEntry(g.Entry, rec.effectiveTime(), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// fieldEntry is one rendered record property. Metric entries also
// participate in directive assembly unless flagged otherwise.
type fieldEntry struct {
	name        string
	val         []byte
	metric      bool
	noDirective bool
	unit        statline.Unit
	highRes     bool
}

// splitGroup collects the metrics of one per-value dimension
// coordinate; each coordinate becomes its own record.
type splitGroup struct {
	idx    int
	dims   []statline.Dimension
	fields []fieldEntry
}

// recordState visits one entry and buffers its content until assembly.
type recordState struct {
	st *encodeState

	fields []fieldEntry

	// nameUsed covers strings and nested objects; metricCoords maps a
	// metric name to the coordinates it appears in (0 is the record
	// itself). A name may repeat across coordinates but never within
	// one, and never against a string.
	nameUsed     map[string]bool
	strings      map[string]string
	metricCoords map[string]map[int]bool

	splits     map[string]*splitGroup
	splitOrder []string

	groups []statline.SampleGroup

	inherit time.Time
	ts      time.Time
	tsSet   bool
	tsErr   bool

	allowSplit      bool
	allowUnroutable bool
	extraSets       [][]string
	extraSetsSet    bool
}

var _ statline.EntryWriter = (*recordState)(nil)

func newRecordState(st *encodeState, inherit time.Time) *recordState {
	r := &recordState{
		st:           st,
		nameUsed:     make(map[string]bool),
		strings:      make(map[string]string),
		metricCoords: make(map[string]map[int]bool),
		splits:       make(map[string]*splitGroup),
		inherit:      inherit,
	}
	for _, d := range st.f.cfg.DefaultDimensions {
		if !r.claimShared(d.Name) {
			continue
		}
		r.strings[d.Name] = d.Value
		r.fields = append(r.fields, fieldEntry{
			name: d.Name,
			val:  appendJSONString(nil, d.Value),
		})
	}
	return r
}

func (r *recordState) effectiveTime() time.Time {
	if r.tsSet {
		return r.ts
	}
	if !r.inherit.IsZero() {
		return r.inherit
	}
	return r.st.f.cfg.Clock.Now()
}

func (r *recordState) Timestamp(t time.Time) {
	if r.tsSet {
		r.tsErr = true
		return
	}
	r.ts, r.tsSet = t, true
}

func (r *recordState) Value(name string, v statline.Value) {
	if v == nil {
		return
	}
	if r.st.f.cfg.Validation {
		if err := validateName(name); err != nil {
			r.st.diag(err.ForField(name))
			return
		}
	}
	v.WriteValue(&valueSink{rec: r, name: name})
}

func (r *recordState) Config(c statline.EntryConfig) {
	switch c := c.(type) {
	case statline.AllowSplitEntries:
		r.allowSplit = true
	case statline.AllowUnroutableEntries:
		r.allowUnroutable = true
	case statline.EntryDimensions:
		if len(c.Sets) == 0 {
			r.st.diag(statline.Invalid("entry dimensions can't be empty"))
			return
		}
		if r.extraSetsSet {
			r.st.diag(statline.Invalid("entry dimensions can't be set twice"))
			return
		}
		if r.st.f.cfg.Validation {
			for _, set := range c.Sets {
				for _, name := range set {
					if err := validateName(name); err != nil {
						r.st.diag(err.ForField(name))
						return
					}
				}
			}
		}
		r.extraSets = c.Sets
		r.extraSetsSet = true
	}
}

func (r *recordState) Group(g statline.SampleGroup) {
	if g.Entry == nil {
		return
	}
	if !g.ValueEnum {
		r.groups = append(r.groups, g)
		return
	}
	if r.st.f.cfg.Validation {
		if err := validateName(g.Name); err != nil {
			r.st.diag(err.ForField(g.Name))
			return
		}
	}
	if !r.claimShared(g.Name) {
		return
	}
	r.fields = append(r.fields, fieldEntry{
		name: g.Name,
		val:  r.renderNested(g.Entry, 0),
	})
}

// claimShared reserves name for a string or nested object field.
func (r *recordState) claimShared(name string) bool {
	if r.nameUsed[name] || len(r.metricCoords[name]) > 0 {
		r.st.diag(statline.Invalid("duplicate field").ForField(name))
		return false
	}
	r.nameUsed[name] = true
	return true
}

// claimMetric reserves name for a metric in the given coordinate.
func (r *recordState) claimMetric(name string, coord int) bool {
	if r.nameUsed[name] || r.metricCoords[name][coord] {
		r.st.diag(statline.Invalid("duplicate field").ForField(name))
		return false
	}
	coords := r.metricCoords[name]
	if coords == nil {
		coords = make(map[int]bool, 1)
		r.metricCoords[name] = coords
	}
	coords[coord] = true
	return true
}

// splitFor returns the coordinate group for a canonical (sorted,
// deduplicated) dimension list, creating it on first use.
func (r *recordState) splitFor(dims []statline.Dimension) *splitGroup {
	var sb strings.Builder
	for _, d := range dims {
		sb.WriteString(d.Name)
		sb.WriteByte(0x1f)
		sb.WriteString(d.Value)
		sb.WriteByte(0x1e)
	}
	key := sb.String()
	if g, ok := r.splits[key]; ok {
		return g
	}
	g := &splitGroup{idx: len(r.splitOrder) + 1, dims: dims}
	r.splits[key] = g
	r.splitOrder = append(r.splitOrder, key)
	return g
}

// valueSink receives exactly one value shape for one named field.
type valueSink struct {
	rec  *recordState
	name string
	used bool
}

var _ statline.ValueWriter = (*valueSink)(nil)

func (s *valueSink) spent() bool {
	if s.used {
		s.rec.st.diag(statline.Invalid("multiple values written").ForField(s.name))
		return true
	}
	s.used = true
	return false
}

func (s *valueSink) String(v string) {
	if s.spent() {
		return
	}
	r := s.rec
	if !r.claimShared(s.name) {
		return
	}
	r.strings[s.name] = v
	r.fields = append(r.fields, fieldEntry{name: s.name, val: appendJSONString(nil, v)})
}

func (s *valueSink) Metric(obs []statline.Observation, unit statline.Unit, dims []statline.Dimension, flags statline.MetricFlags) {
	if s.spent() {
		return
	}
	r := s.rec
	if len(obs) == 0 {
		// A metric without observations is intentionally empty.
		return
	}
	if r.st.f.cfg.Validation && unit != "" && unit != statline.UnitNone && !unit.Valid() {
		r.st.diag(statline.Invalidf("unknown unit %q", string(unit)).ForField(s.name))
		unit = statline.UnitNone
	}
	fe := fieldEntry{
		name:        s.name,
		metric:      true,
		noDirective: flags.NoDirective(),
		unit:        unit,
		highRes:     flags.HighResolution() || r.st.f.cfg.Resolution == StorageResolutionHigh,
	}
	if len(dims) == 0 {
		if !r.claimMetric(s.name, 0) {
			return
		}
		val, ok := r.st.renderMetricValue(s.name, obs)
		if !ok {
			return
		}
		fe.val = val
		r.fields = append(r.fields, fe)
		return
	}

	if !r.allowSplit {
		r.st.diag(statline.Invalid(
			"can't use per-metric dimensions without split entries").ForField(s.name))
		return
	}
	clean := make([]statline.Dimension, 0, len(dims))
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if r.st.f.cfg.Validation {
			if err := validateName(d.Name); err != nil {
				r.st.diag(err.ForField(d.Name))
				return
			}
		}
		if seen[d.Name] {
			r.st.diag(statline.Invalid("duplicate dimension").ForField(d.Name))
			continue
		}
		seen[d.Name] = true
		clean = append(clean, d)
	}
	sort.Slice(clean, func(i, j int) bool { return clean[i].Name < clean[j].Name })
	g := r.splitFor(clean)
	if !r.claimMetric(s.name, g.idx) {
		return
	}
	val, ok := r.st.renderMetricValue(s.name, obs)
	if !ok {
		return
	}
	fe.val = val
	g.fields = append(g.fields, fe)
}

func (s *valueSink) Error(err error) {
	if s.spent() || err == nil {
		return
	}
	var ve *statline.ValidationError
	if errors.As(err, &ve) {
		s.rec.st.diag(ve.ForField(s.name))
		return
	}
	s.rec.st.diag(statline.Invalid(err.Error()).ForField(s.name))
}

// renderMetricValue renders the observations of one metric field,
// reporting !ok when nothing survives. All-NaN metrics drop with a
// diagnostic; empty ones were filtered by the caller.
func (st *encodeState) renderMetricValue(name string, obs []statline.Observation) ([]byte, bool) {
	if len(obs) == 1 && !st.sampled {
		o := obs[0]
		switch o.Kind() {
		case statline.UnsignedKind:
			return appendUint(nil, o.Unsigned()), true
		case statline.FloatingKind:
			f := o.Floating()
			if math.IsNaN(f) {
				st.diag(statline.Invalid("skipping NaN observation").ForField(name))
				return nil, false
			}
			return appendFloat(nil, f), true
		}
		// A single Repeated observation renders as a distribution so
		// its occurrence count survives.
	}
	if st.f.cfg.Distribution == DistributionExpanded && !st.sampled {
		if val, ok, fits := st.renderExpanded(name, obs); fits {
			return val, ok
		}
	}
	return st.renderCompact(name, obs)
}

// renderCompact renders paired Values/Counts arrays. Repeated
// observations contribute their mean once with their occurrence
// count; sampling multiplies every count.
func (st *encodeState) renderCompact(name string, obs []statline.Observation) ([]byte, bool) {
	vals := append([]byte(nil), `{"Values":[`...)
	counts := append([]byte(nil), `],"Counts":[`...)
	wrote := false
	sawNaN := false
	for _, o := range obs {
		var point float64
		count := st.mult
		switch o.Kind() {
		case statline.UnsignedKind:
			// Rendered below as an exact integer.
		case statline.FloatingKind:
			point = o.Floating()
		case statline.RepeatedKind:
			total, occ := o.Repeated()
			if occ > 0 {
				point = total / float64(occ)
			}
			count = satMul(occ, st.mult)
		}
		if math.IsNaN(point) {
			sawNaN = true
			continue
		}
		if wrote {
			vals = append(vals, ',')
			counts = append(counts, ',')
		}
		if o.Kind() == statline.UnsignedKind {
			vals = appendUint(vals, o.Unsigned())
		} else {
			vals = appendFloat(vals, point)
		}
		counts = appendUint(counts, count)
		wrote = true
	}
	if sawNaN {
		st.diag(statline.Invalid("skipping NaN observation").ForField(name))
	}
	if !wrote {
		return nil, false
	}
	vals = append(vals, counts...)
	return append(vals, ']', '}'), true
}

// renderExpanded renders a flat array with each value repeated by its
// count. It reports !fits when any single count exceeds the
// duplication limit, in which case the caller falls back to the
// compact form.
func (st *encodeState) renderExpanded(name string, obs []statline.Observation) (val []byte, ok, fits bool) {
	for _, o := range obs {
		if o.Count() > expandedCountLimit {
			return nil, false, false
		}
	}
	b := append([]byte(nil), '[')
	wrote := false
	sawNaN := false
	for _, o := range obs {
		var elem []byte
		n := uint64(1)
		switch o.Kind() {
		case statline.UnsignedKind:
			elem = appendUint(nil, o.Unsigned())
		case statline.FloatingKind:
			f := o.Floating()
			if math.IsNaN(f) {
				sawNaN = true
				continue
			}
			elem = appendFloat(nil, f)
		case statline.RepeatedKind:
			total, occ := o.Repeated()
			if occ == 0 {
				continue
			}
			mean := total / float64(occ)
			if math.IsNaN(mean) {
				sawNaN = true
				continue
			}
			elem = appendFloat(nil, mean)
			n = occ
		}
		for ; n > 0; n-- {
			if wrote {
				b = append(b, ',')
			}
			b = append(b, elem...)
			wrote = true
		}
	}
	if sawNaN {
		st.diag(statline.Invalid("skipping NaN observation").ForField(name))
	}
	if !wrote {
		return nil, false, true
	}
	return append(b, ']'), true, true
}

// assemble turns the visited entry into records: one per split
// coordinate, then the record itself unless it would add nothing
// beyond what the coordinate records already carry.
func (r *recordState) assemble() {
	tsMillis := r.effectiveTime().UnixMilli()

	emittedSplit := false
	for _, key := range r.splitOrder {
		g := r.splits[key]
		if len(g.fields) == 0 {
			continue
		}
		pairNames := make(map[string]bool, len(g.dims))
		fields := make([]fieldEntry, 0, len(g.dims)+len(g.fields)+len(r.fields))
		for _, d := range g.dims {
			pairNames[d.Name] = true
			fields = append(fields, fieldEntry{
				name: d.Name,
				val:  appendJSONString(nil, d.Value),
			})
		}
		var metrics []directiveMetric
		for _, fe := range g.fields {
			idx := len(fields)
			fields = append(fields, fe)
			if !fe.noDirective {
				metrics = append(metrics, directiveMetric{
					fieldIdx: idx,
					name:     fe.name,
					unit:     fe.unit,
					highRes:  fe.highRes,
				})
			}
		}
		for _, fe := range r.fields {
			if !fe.metric && !pairNames[fe.name] {
				fields = append(fields, fe)
			}
		}
		r.st.appendRecord(tsMillis, r.resolveSets(g.dims), fields, metrics)
		emittedSplit = true
	}

	mainHasMetrics := false
	var fields []fieldEntry
	var metrics []directiveMetric
	for _, fe := range r.fields {
		idx := len(fields)
		fields = append(fields, fe)
		if fe.metric {
			mainHasMetrics = true
			if !fe.noDirective {
				metrics = append(metrics, directiveMetric{
					fieldIdx: idx,
					name:     fe.name,
					unit:     fe.unit,
					highRes:  fe.highRes,
				})
			}
		}
	}
	if !emittedSplit || mainHasMetrics {
		r.st.appendRecord(tsMillis, r.resolveSets(nil), fields, metrics)
	}
}

// resolveSets produces the effective dimension set list for one
// record: configured sets plus entry sets, each extended by the split
// coordinate's pair names, validated and deduplicated.
func (r *recordState) resolveSets(pairs []statline.Dimension) [][]string {
	candidates := make([][]string, 0, len(r.st.f.cfg.DimensionSets)+len(r.extraSets))
	candidates = append(candidates, r.st.f.cfg.DimensionSets...)
	candidates = append(candidates, r.extraSets...)

	pairNames := make(map[string]bool, len(pairs))
	pairList := make([]string, 0, len(pairs))
	for _, p := range pairs {
		pairNames[p.Name] = true
		pairList = append(pairList, p.Name)
	}

	out := make([][]string, 0, len(candidates))
	dedup := make(map[string]bool, len(candidates))
	for _, set := range candidates {
		merged := make([]string, 0, len(set)+len(pairList))
		inSet := make(map[string]bool, len(set)+len(pairList))
		for _, name := range set {
			if !inSet[name] {
				inSet[name] = true
				merged = append(merged, name)
			}
		}
		for _, name := range pairList {
			if !inSet[name] {
				inSet[name] = true
				merged = append(merged, name)
			}
		}
		if len(merged) > maxDimensionNames {
			r.st.diag(statline.Invalidf("dimension set has %d names, limit is %d",
				len(merged), maxDimensionNames))
			continue
		}
		if !r.allowUnroutable && !r.dimensionsPresent(merged, pairNames) {
			continue
		}
		key := strings.Join(merged, "\x1f")
		if dedup[key] {
			continue
		}
		dedup[key] = true
		if len(out) == maxDimensionSets {
			r.st.diag(statline.Invalidf("too many dimension sets, limit is %d",
				maxDimensionSets))
			continue
		}
		out = append(out, merged)
	}
	return out
}

func (r *recordState) dimensionsPresent(set []string, pairNames map[string]bool) bool {
	for _, name := range set {
		if pairNames[name] {
			continue
		}
		if _, ok := r.strings[name]; ok {
			continue
		}
		if len(r.metricCoords[name]) > 0 {
			r.st.diag(statline.Invalid("can't use metric in dimension field").ForField(name))
		} else {
			r.st.diag(statline.Invalid("missing dimension").ForField(name))
		}
		return false
	}
	return true
}

type directiveMetric struct {
	fieldIdx int
	name     string
	unit     statline.Unit
	highRes  bool
}

// appendRecord renders one complete record line. Metrics are chunked
// into directive blocks by storage resolution; blocks beyond the
// directive budget drop their metrics' fields with a diagnostic.
func (st *encodeState) appendRecord(tsMillis int64, sets [][]string, fields []fieldEntry, metrics []directiveMetric) {
	var std, high []directiveMetric
	for _, m := range metrics {
		if m.highRes {
			high = append(high, m)
		} else {
			std = append(std, m)
		}
	}

	var blocks [][]directiveMetric
	var dropped map[int]bool
	take := func(list []directiveMetric) {
		for len(list) > 0 {
			if len(blocks) == st.f.maxDirectives {
				if dropped == nil {
					dropped = make(map[int]bool, len(list))
				}
				for _, m := range list {
					dropped[m.fieldIdx] = true
					st.diag(statline.Invalid("too many metric directives").ForField(m.name))
				}
				return
			}
			n := len(list)
			if n > maxMetricsPerBlock {
				n = maxMetricsPerBlock
			}
			blocks = append(blocks, list[:n])
			list = list[n:]
		}
	}
	take(std)
	take(high)
	if len(blocks) == 0 {
		blocks = append(blocks, nil)
	}

	b := st.out
	b = append(b, `{"_aws":{"CloudWatchMetrics":[`...)
	firstBlock := true
	for _, ns := range st.f.cfg.Namespaces {
		for _, blk := range blocks {
			if !firstBlock {
				b = append(b, ',')
			}
			firstBlock = false
			b = append(b, `{"Namespace":`...)
			b = appendJSONString(b, ns)
			b = append(b, `,"Dimensions":[`...)
			for i, set := range sets {
				if i > 0 {
					b = append(b, ',')
				}
				b = append(b, '[')
				for j, name := range set {
					if j > 0 {
						b = append(b, ',')
					}
					b = appendJSONString(b, name)
				}
				b = append(b, ']')
			}
			b = append(b, `],"Metrics":[`...)
			for i, m := range blk {
				if i > 0 {
					b = append(b, ',')
				}
				b = append(b, `{"Name":`...)
				b = appendJSONString(b, m.name)
				if m.unit != "" && m.unit != statline.UnitNone {
					b = append(b, `,"Unit":`...)
					b = appendJSONString(b, string(m.unit))
				}
				if m.highRes {
					b = append(b, `,"StorageResolution":1`...)
				}
				b = append(b, '}')
			}
			b = append(b, ']', '}')
		}
	}
	b = append(b, ']')
	if st.f.cfg.LogGroupName != "" {
		b = append(b, `,"LogGroupName":`...)
		b = appendJSONString(b, st.f.cfg.LogGroupName)
	}
	b = append(b, `,"Timestamp":`...)
	b = appendInt(b, tsMillis)
	b = append(b, '}')
	for i := range fields {
		if dropped[i] {
			continue
		}
		b = append(b, ',')
		b = appendKey(b, fields[i].name)
		b = append(b, fields[i].val...)
	}
	b = append(b, '}', '\n')
	st.out = b
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}
