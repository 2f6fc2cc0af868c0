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

// Package emf formats entries as CloudWatch Embedded Metric Format
// records, one JSON object per line.
//
// A Formatter is configured once with a namespace and the dimension
// sets that CloudWatch should extract, then reused for every entry:
//
//	f, err := emf.New("MyApp", [][]string{{"operation"}})
//	if err != nil {
//		...
//	}
//	stream := statline.NewStream(f, os.Stdout)
//
// Encoding is tolerant by default: a field that violates a format
// limit is dropped and reported through the diagnostics callback
// while the rest of the entry is still written. Only an entry that
// writes more than one timestamp fails as a whole.
package emf // import "github.com/statline/go-statline/emf"

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"

	"github.com/statline/go-statline"
	"github.com/statline/go-statline/internal/doevery"
)

// CloudWatch EMF record limits. A field whose encoding would exceed
// one of these is dropped from the record, not the whole entry.
const (
	maxDimensionSets   = 30
	maxDimensionNames  = 30
	maxDirectives      = 100
	maxMetricsPerBlock = 100
	maxNameLength      = 255

	// reservedMember is the EMF metadata member; user fields may not
	// claim it.
	reservedMember = "_aws"

	// expandedCountLimit bounds per-observation duplication when
	// rendering expanded distributions.
	expandedCountLimit = 100
)

// DistributionFormat selects how multi-observation metrics render.
type DistributionFormat int

const (
	// DistributionCompact renders paired Values/Counts arrays. This is
	// the default; it preserves exact occurrence counts at any size.
	DistributionCompact DistributionFormat = iota

	// DistributionExpanded renders a flat array with each value
	// repeated by its count. Counts above the duplication limit fall
	// back to the compact form for that field.
	DistributionExpanded
)

// StorageResolution selects the CloudWatch storage resolution applied
// to metrics that do not carry their own resolution flag.
type StorageResolution int

const (
	// StorageResolutionStandard stores at sixty second resolution.
	// Standard resolution is CloudWatch's default and is omitted from
	// the encoded record.
	StorageResolutionStandard StorageResolution = 60

	// StorageResolutionHigh stores at one second resolution.
	StorageResolutionHigh StorageResolution = 1
)

// Config is the complete configuration of a Formatter. Construct one
// through New and Options rather than by hand.
type Config struct {
	// Namespaces are the CloudWatch namespaces every metric directive
	// is replicated under. New seeds this with its namespace argument;
	// WithNamespace appends.
	Namespaces []string

	// DimensionSets are the dimension name sets extracted for every
	// metric in every entry. Each name must be written as a string
	// field by the entry (or supplied by DefaultDimensions) or the set
	// is dropped from that record.
	DimensionSets [][]string

	// DefaultDimensions are string fields prepended to every record,
	// usable as dimension set members.
	DefaultDimensions []statline.Dimension

	// LogGroupName, when set, is written as the LogGroupName field of
	// every record for agents that route on it.
	LogGroupName string

	// Validation enables name and unit checking. Disabling it skips
	// the checks but still honors structural limits.
	Validation bool

	// Distribution selects the rendering of multi-observation metrics.
	Distribution DistributionFormat

	// Resolution is the storage resolution applied to metrics without
	// a high resolution flag.
	Resolution StorageResolution

	// Clock supplies timestamps for entries that do not write one.
	Clock clock.Clock

	// Logger receives rate limited diagnostics when no Diagnostics
	// callback is installed.
	Logger logr.Logger

	// Diagnostics receives every dropped-field error. Callbacks must
	// be fast and must not retain the error's formatted fields.
	Diagnostics func(error)
}

// Option applies a setting to a Config.
type Option func(*Config)

// WithNamespace replicates every metric directive under an additional
// namespace.
func WithNamespace(namespace string) Option {
	return func(cfg *Config) {
		cfg.Namespaces = append(cfg.Namespaces, namespace)
	}
}

// WithDefaultDimension adds a string field written at the start of
// every record. Entry fields with the same name are dropped as
// duplicates.
func WithDefaultDimension(name, value string) Option {
	return func(cfg *Config) {
		cfg.DefaultDimensions = append(cfg.DefaultDimensions,
			statline.Dimension{Name: name, Value: value})
	}
}

// WithLogGroupName sets the LogGroupName field written on every
// record.
func WithLogGroupName(name string) Option {
	return func(cfg *Config) {
		cfg.LogGroupName = name
	}
}

// WithoutValidation disables name and unit validation. Structural
// limits still apply.
func WithoutValidation() Option {
	return func(cfg *Config) {
		cfg.Validation = false
	}
}

// WithDistributionFormat selects the rendering of multi-observation
// metrics.
func WithDistributionFormat(f DistributionFormat) Option {
	return func(cfg *Config) {
		cfg.Distribution = f
	}
}

// WithStorageResolution sets the resolution applied to metrics that
// do not carry their own resolution flag.
func WithStorageResolution(r StorageResolution) Option {
	return func(cfg *Config) {
		cfg.Resolution = r
	}
}

// WithClock substitutes the clock used to stamp entries that do not
// write a timestamp.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) {
		cfg.Clock = c
	}
}

// WithLogger sets the logger used for rate limited diagnostics when
// no Diagnostics callback is installed.
func WithLogger(l logr.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithDiagnostics installs a callback invoked once per dropped field
// or observation, replacing the default rate limited logging.
func WithDiagnostics(fn func(error)) Option {
	return func(cfg *Config) {
		cfg.Diagnostics = fn
	}
}

// Validate checks the configuration and fills defaults, returning the
// effective Config.
func (cfg Config) Validate() (Config, error) {
	var b statline.ValidationErrorBuilder
	if len(cfg.Namespaces) == 0 {
		b.Invalid("namespace can't be empty")
	}
	for _, ns := range cfg.Namespaces {
		if err := validateName(ns); err != nil {
			b.Extend(err.ForField(ns))
		}
	}
	if len(cfg.DimensionSets) == 0 {
		// No configured sets still extracts every metric, with no
		// dimensions.
		cfg.DimensionSets = [][]string{{}}
	}
	if len(cfg.DimensionSets) > maxDimensionSets {
		b.Invalidf("too many dimension sets: %d exceeds the limit of %d",
			len(cfg.DimensionSets), maxDimensionSets)
	}
	for _, set := range cfg.DimensionSets {
		if len(set) > maxDimensionNames {
			b.Invalidf("dimension set has %d names, limit is %d",
				len(set), maxDimensionNames)
			continue
		}
		for _, name := range set {
			if err := validateName(name); err != nil {
				b.Extend(err.ForField(name))
			}
		}
	}
	for _, d := range cfg.DefaultDimensions {
		if err := validateName(d.Name); err != nil {
			b.Extend(err.ForField(d.Name))
		}
	}
	switch cfg.Resolution {
	case StorageResolutionStandard, StorageResolutionHigh:
	case 0:
		cfg.Resolution = StorageResolutionStandard
	default:
		b.Invalidf("unsupported storage resolution %d", cfg.Resolution)
	}
	switch cfg.Distribution {
	case DistributionCompact, DistributionExpanded:
	default:
		b.Invalidf("unsupported distribution format %d", cfg.Distribution)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = statline.Logger()
	}
	if cfg.Diagnostics == nil {
		logger := cfg.Logger
		cfg.Diagnostics = func(err error) {
			doevery.TimePeriod(30*time.Second, func() {
				logger.Info("emf: dropped from record", "error", err)
			})
		}
	}
	if err := b.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Formatter encodes entries as EMF records. It reuses an internal
// buffer across calls and is safe for one goroutine at a time; put
// concurrency in front of the stream, not the Formatter.
type Formatter struct {
	cfg Config

	// maxDirectives is the per-record directive budget divided across
	// the configured namespaces, since every directive is replicated
	// under each.
	maxDirectives int

	buf []byte
}

var (
	_ statline.Format        = (*Formatter)(nil)
	_ statline.SampledFormat = (*Formatter)(nil)
)

// New returns a Formatter that writes records under namespace,
// extracting the given dimension sets for every metric.
func New(namespace string, dimensionSets [][]string, opts ...Option) (*Formatter, error) {
	cfg := Config{
		Namespaces:    []string{namespace},
		DimensionSets: dimensionSets,
		Validation:    true,
		Resolution:    StorageResolutionStandard,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	budget := maxDirectives / len(cfg.Namespaces)
	if budget < 1 {
		budget = 1
	}
	return &Formatter{
		cfg:           cfg,
		maxDirectives: budget,
	}, nil
}

// Format encodes e and writes the resulting record, or records when
// the entry splits, in a single Write call. The writer sees either
// the whole entry or nothing.
func (f *Formatter) Format(e statline.Entry, w io.Writer) error {
	return f.format(e, w, false, 1)
}

// FormatSampled encodes e as Format does, scaling every observation
// count by the reciprocal of rate to compensate for sampling. The
// multiplicity is rounded stochastically so scaled counts are exact
// in expectation even when 1/rate is not an integer.
func (f *Formatter) FormatSampled(e statline.Entry, w io.Writer, rate float32) error {
	if !(rate > 0 && rate <= 1) {
		return statline.Invalidf("sample rate %v outside (0, 1]", rate)
	}
	return f.format(e, w, true, sampleMultiplicity(rate))
}

func sampleMultiplicity(rate float32) uint64 {
	if float64(rate) < 1.0/float64(math.MaxInt64) {
		return math.MaxUint64
	}
	inv := 1.0 / float64(rate)
	n := uint64(inv)
	// Choose n with probability alpha and n+1 otherwise, where alpha
	// satisfies 1/rate = alpha*n + (1-alpha)*(n+1).
	alpha := float64(n+1) - inv
	if rand.Float64() < alpha {
		return n
	}
	return n + 1
}

func (f *Formatter) format(e statline.Entry, w io.Writer, sampled bool, mult uint64) error {
	if e == nil {
		return nil
	}
	st := newEncodeState(f, sampled, mult)
	if err := st.encodeEntry(e, time.Time{}, 0); err != nil {
		return err
	}
	f.buf = st.out[:0]
	if _, err := w.Write(st.out); err != nil {
		return fmt.Errorf("emf: write: %w", err)
	}
	return nil
}

// validateName checks a field, dimension, or namespace name against
// the record limits.
func validateName(name string) *statline.ValidationError {
	if name == "" {
		return statline.Invalid("name can't be empty")
	}
	if name == reservedMember {
		return statline.Invalid("name can't be `_aws`")
	}
	if len(name) > maxNameLength {
		return statline.Invalidf("name length %d exceeds the limit of %d",
			len(name), maxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 {
			return statline.Invalid("name can't contain control characters")
		}
	}
	return nil
}
