// Package metrics exposes the pipeline's loss and throughput counters to
// Prometheus. The components themselves keep plain mutex-guarded counters;
// this package adapts their Stats methods into collectors, so telemetry loss
// (overflow evictions, stale discards, failed sends) is operationally visible.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sofatutor/usage-telemetry/internal/buffer"
	"github.com/sofatutor/usage-telemetry/internal/dispatcher"
)

// Registry bundles the prometheus registry with the pipeline collectors.
type Registry struct {
	reg *prometheus.Registry
}

// New creates a registry and registers collectors over the given buffer and
// dispatcher.
func New(ring *buffer.Ring, svc *dispatcher.Service) *Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, value func() uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "usage_telemetry",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value()) })
	}

	reg.MustRegister(
		counter("events_pushed_total", "Events admitted into the buffer.", func() uint64 {
			pushed, _ := ring.Stats()
			return pushed
		}),
		counter("events_evicted_total", "Events lost to buffer overflow.", func() uint64 {
			_, evicted := ring.Stats()
			return evicted
		}),
		counter("events_drained_total", "Events drained by dispatcher cycles.", func() uint64 {
			drained, _, _, _, _ := svc.Stats()
			return drained
		}),
		counter("events_stale_discarded_total", "Drained events discarded as stale.", func() uint64 {
			_, dropped, _, _, _ := svc.Stats()
			return dropped
		}),
		counter("events_sent_total", "Events delivered to the analytics backend.", func() uint64 {
			_, _, sent, _, _ := svc.Stats()
			return sent
		}),
		counter("batches_sent_total", "Batches delivered to the analytics backend.", svc.BatchesSent),
		counter("send_failures_total", "Batch send attempts that failed.", func() uint64 {
			_, _, _, sendFailures, _ := svc.Stats()
			return sendFailures
		}),
		counter("resolve_failures_total", "Send attempts aborted because no client owned the destination key.", func() uint64 {
			_, _, _, _, resolveFailures := svc.Stats()
			return resolveFailures
		}),
	)

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "usage_telemetry",
		Name:      "buffer_size",
		Help:      "Events currently buffered.",
	}, func() float64 { return float64(ring.Len()) }))

	return &Registry{reg: reg}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Prometheus returns the underlying registry, mainly for tests.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }
