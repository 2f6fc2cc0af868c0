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

package sink // import "github.com/statline/go-statline/sink"

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/statline/go-statline"
)

// Policy selects what Append does when the queue is full.
type Policy string

const (
	// PolicyDropOldest evicts the oldest queued entry to make room for
	// the new one, counting the eviction. The default: producers never
	// wait, and when delivery falls behind the freshest data wins.
	PolicyDropOldest Policy = "drop-oldest"

	// PolicyReject discards the incoming entry and counts it, keeping
	// what is already queued.
	PolicyReject Policy = "reject"

	// PolicyBlock waits up to BlockTimeout for space, then drops and
	// counts. Use only where a brief stall is cheaper than a gap.
	PolicyBlock Policy = "block"
)

// Queue defaults.
const (
	DefaultCapacity        = 65536
	DefaultBlockTimeout    = 100 * time.Millisecond
	DefaultFlushInterval   = time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// maxFlushInterval bounds how long records may sit buffered.
	// CloudWatch rejects records more than a few minutes old, so the
	// flusher has to run well inside a minute.
	maxFlushInterval = time.Minute
)

// QueueConfig configures a BackgroundQueue. The zero value validates
// to the defaults; QueueConfigFromEnv fills it from the environment.
type QueueConfig struct {
	// Name labels the queue in logs and in QueueStats metrics.
	Name string `env:"STATLINE_QUEUE_NAME,default=default"`

	// Capacity bounds how many entries may wait for delivery.
	Capacity int `env:"STATLINE_QUEUE_CAPACITY,default=65536"`

	// Policy selects the saturation behavior.
	Policy Policy `env:"STATLINE_QUEUE_POLICY,default=drop-oldest"`

	// BlockTimeout bounds the wait for space under PolicyBlock. Ignored
	// by the other policies.
	BlockTimeout time.Duration `env:"STATLINE_QUEUE_BLOCK_TIMEOUT,default=100ms"`

	// FlushInterval is how often the delivery goroutine flushes the
	// stream's buffer. Must stay under a minute.
	FlushInterval time.Duration `env:"STATLINE_QUEUE_FLUSH_INTERVAL,default=1s"`

	// ShutdownTimeout bounds the Shutdown drain when the caller's
	// context carries no deadline of its own.
	ShutdownTimeout time.Duration `env:"STATLINE_QUEUE_SHUTDOWN_TIMEOUT,default=30s"`
}

// Validate fills defaults and checks the rest, returning the effective
// configuration.
func (cfg QueueConfig) Validate() (QueueConfig, error) {
	var b statline.ValidationErrorBuilder

	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	} else if cfg.Capacity < 0 {
		b.Invalidf("queue capacity %d must be positive", cfg.Capacity)
	}
	switch cfg.Policy {
	case "":
		cfg.Policy = PolicyDropOldest
	case PolicyDropOldest, PolicyReject, PolicyBlock:
	default:
		b.Invalidf("unknown queue policy %q", string(cfg.Policy))
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	} else if cfg.BlockTimeout < 0 {
		b.Invalidf("block timeout %s must be positive", cfg.BlockTimeout)
	}
	switch {
	case cfg.FlushInterval == 0:
		cfg.FlushInterval = DefaultFlushInterval
	case cfg.FlushInterval < 0:
		b.Invalidf("flush interval %s must be positive", cfg.FlushInterval)
	case cfg.FlushInterval >= maxFlushInterval:
		b.Invalidf("flush interval %s leaves records stale; must be under %s",
			cfg.FlushInterval, maxFlushInterval)
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	} else if cfg.ShutdownTimeout < 0 {
		b.Invalidf("shutdown timeout %s must be positive", cfg.ShutdownTimeout)
	}

	return cfg, b.Err()
}

// QueueConfigFromEnv reads QueueConfig from STATLINE_QUEUE_* variables
// and validates it. Environment lookup happens only through this
// explicit call, never as a side effect of construction.
func QueueConfigFromEnv(ctx context.Context) (QueueConfig, error) {
	var cfg QueueConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return QueueConfig{}, err
	}
	return cfg.Validate()
}
