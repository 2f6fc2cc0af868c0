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

import "github.com/prometheus/client_golang/prometheus"

// QueueStats publishes queue health as Prometheus metrics, labeled by
// queue name so one QueueStats can serve several queues:
//
//	statline_queue_emitted_total            counter
//	statline_queue_dropped_total            counter
//	statline_queue_io_errors_total          counter
//	statline_queue_validation_errors_total  counter
//	statline_queue_length                   gauge
//
// The queue that writes entries must not be the one those metrics are
// scraped through, or a delivery stall hides its own evidence; hand
// QueueStats a Registerer scraped independently.
type QueueStats struct {
	emitted   *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	ioErrors  *prometheus.CounterVec
	valErrors *prometheus.CounterVec
	length    *prometheus.GaugeVec
}

// NewQueueStats creates the metric families and registers them on reg.
func NewQueueStats(reg prometheus.Registerer) (*QueueStats, error) {
	labels := []string{"queue"}
	s := &QueueStats{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statline_queue_emitted_total",
			Help: "Entries the output stream accepted.",
		}, labels),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statline_queue_dropped_total",
			Help: "Entries discarded before delivery: evictions, rejects, block timeouts, appends after shutdown.",
		}, labels),
		ioErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statline_queue_io_errors_total",
			Help: "Deliveries and flushes that failed with non-validation errors.",
		}, labels),
		valErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statline_queue_validation_errors_total",
			Help: "Entries the output stream rejected as invalid.",
		}, labels),
		length: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "statline_queue_length",
			Help: "Entries currently waiting for delivery.",
		}, labels),
	}
	for _, c := range []prometheus.Collector{s.emitted, s.dropped, s.ioErrors, s.valErrors, s.length} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// instruments resolves the per-queue children once so the hot path
// skips the label lookup. A nil QueueStats yields nil instruments,
// which count into the void.
func (s *QueueStats) instruments(queue string) *queueInstruments {
	if s == nil {
		return nil
	}
	return &queueInstruments{
		emitted:   s.emitted.WithLabelValues(queue),
		dropped:   s.dropped.WithLabelValues(queue),
		ioErrors:  s.ioErrors.WithLabelValues(queue),
		valErrors: s.valErrors.WithLabelValues(queue),
		length:    s.length.WithLabelValues(queue),
	}
}

type queueInstruments struct {
	emitted   prometheus.Counter
	dropped   prometheus.Counter
	ioErrors  prometheus.Counter
	valErrors prometheus.Counter
	length    prometheus.Gauge
}

func (i *queueInstruments) incEmitted() {
	if i != nil {
		i.emitted.Inc()
	}
}

func (i *queueInstruments) incDropped(n int) {
	if i != nil {
		i.dropped.Add(float64(n))
	}
}

func (i *queueInstruments) incIOErrors() {
	if i != nil {
		i.ioErrors.Inc()
	}
}

func (i *queueInstruments) incValidationErrors() {
	if i != nil {
		i.valErrors.Inc()
	}
}

func (i *queueInstruments) setLength(n int) {
	if i != nil {
		i.length.Set(float64(n))
	}
}
