// Package metrics exposes the Prometheus collectors shared by the draft engine,
// the session store and the REST client.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "draftflow"

// Metrics groups every collector the service reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cacheFallbacks *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
	apiCalls       *prometheus.CounterVec
	autocomplete   *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers the collectors on reg. Collectors that are already
// registered are reused; any other registration error panics.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cacheFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cache_fallbacks_total",
			Help:      "Session store operations served by the in-memory fallback.",
		}, []string{"op"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of calls to the business API per flow and action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow", "action"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "api_calls_total",
			Help:      "Calls to the business API per flow, action and outcome.",
		}, []string{"flow", "action", "outcome"}),
		autocomplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "autocomplete_total",
			Help:      "Autocomplete enrichment calls per flow and outcome.",
		}, []string{"flow", "outcome"}),
	}

	m.cacheFallbacks = register(reg, m.cacheFallbacks)
	m.apiDuration = register(reg, m.apiDuration)
	m.apiCalls = register(reg, m.apiCalls)
	m.autocomplete = register(reg, m.autocomplete)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// IncCacheFallback records an operation served from the in-memory store.
func (m *Metrics) IncCacheFallback(op string) {
	if m == nil {
		return
	}
	m.cacheFallbacks.WithLabelValues(op).Inc()
}

// ObserveAPICall records the duration and outcome of a business API call.
func (m *Metrics) ObserveAPICall(flow, action string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.apiDuration.WithLabelValues(flow, action).Observe(d.Seconds())
	m.apiCalls.WithLabelValues(flow, action, outcome(err)).Inc()
}

// IncAutocomplete records the outcome of an autocomplete enrichment.
func (m *Metrics) IncAutocomplete(flow string, err error) {
	if m == nil {
		return
	}
	m.autocomplete.WithLabelValues(flow, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
