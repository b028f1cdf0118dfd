// Package metrics exposes Prometheus counters for the script bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bridge groups the bridge's collectors on a private registry.
// A nil *Bridge is valid and records nothing.
type Bridge struct {
	Registry         *prometheus.Registry
	NativeCalls      *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	CallbackFailures *prometheus.CounterVec
}

// New creates and registers the bridge collectors.
func New() *Bridge {
	m := &Bridge{
		Registry: prometheus.NewRegistry(),
		NativeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezbridge_native_calls_total",
				Help: "Native function calls made from scripts",
			},
			[]string{"module", "function", "outcome"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezbridge_signal_deliveries_total",
				Help: "Script callbacks invoked for domain signals",
			},
			[]string{"signal"},
		),
		CallbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezbridge_callback_failures_total",
				Help: "Script callbacks that raised an error during signal delivery",
			},
			[]string{"signal"},
		),
	}
	m.Registry.MustRegister(
		m.NativeCalls,
		m.Deliveries,
		m.CallbackFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveNative counts one native call.
func (m *Bridge) ObserveNative(module, function string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.NativeCalls.WithLabelValues(module, function, outcome).Inc()
}

// ObserveDelivery counts one callback invocation and its failure, if any.
func (m *Bridge) ObserveDelivery(signal string, err error) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(signal).Inc()
	if err != nil {
		m.CallbackFailures.WithLabelValues(signal).Inc()
	}
}

// TrackGauge registers a gauge computed on scrape.
func (m *Bridge) TrackGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Bridge) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
