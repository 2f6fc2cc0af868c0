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

package histogram // import "github.com/statline/go-statline/histogram"

import (
	"fmt"

	"github.com/statline/go-statline"
)

// DefaultMaxSize is the default bucket capacity.
const DefaultMaxSize int32 = 160

// minSize is the smallest usable bucket capacity.
const minSize int32 = 2

// Config configures either histogram kind.
type Config struct {
	// MaxSize bounds the number of buckets.
	MaxSize int32

	// Unit applies to every recorded observation.
	Unit statline.Unit
}

// Option modifies a Config.
type Option func(*Config)

// WithMaxSize sets the bucket capacity.
func WithMaxSize(size int32) Option {
	return func(c *Config) {
		c.MaxSize = size
	}
}

// WithUnit sets the unit of recorded observations.
func WithUnit(u statline.Unit) Option {
	return func(c *Config) {
		c.Unit = u
	}
}

// NewConfig returns a Config with the options applied.
func NewConfig(opts ...Option) Config {
	var c Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate returns a valid configuration along with an error if there
// were invalid settings. The zero state is valid and becomes the
// defaults.
func (c Config) Validate() (Config, error) {
	if c.Unit == "" {
		c.Unit = statline.UnitNone
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MaxSize < minSize {
		return c, fmt.Errorf("histogram max size too small: %d < %d", c.MaxSize, minSize)
	}
	return c, nil
}
