// Package metrics exposes Prometheus counters for auth operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tether"

// Recorder is what the service and verifier layers report to.
type Recorder interface {
	RecordOperation(op, outcome string)
	RecordVerification(provider, outcome string, d time.Duration)
	RecordKeyFetch(provider, outcome string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	operations   *prometheus.CounterVec
	verification *prometheus.HistogramVec
	keyFetches   *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome kind.",
		}, []string{"op", "outcome"}),
		verification: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identity_verification_seconds",
			Help:      "Identity token verification latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		keyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_key_fetches_total",
			Help:      "Signing key set fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	reg.MustRegister(c.operations, c.verification, c.keyFetches)

	return c
}

func (c *Collector) RecordOperation(op, outcome string) {
	c.operations.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) RecordVerification(provider, outcome string, d time.Duration) {
	c.verification.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func (c *Collector) RecordKeyFetch(provider, outcome string) {
	c.keyFetches.WithLabelValues(provider, outcome).Inc()
}

// Nop discards every observation.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordOperation(string, string)                    {}
func (Nop) RecordVerification(string, string, time.Duration) {}
func (Nop) RecordKeyFetch(string, string)                     {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
