// Package metrics exposes gateway counters and latency histograms in
// Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josephgoksu/jenos-mcp/mcp"
)

const namespace = "jenos"

// unknownTool labels invocations whose name did not resolve, so arbitrary
// client input cannot grow label cardinality.
const unknownTool = "unknown"

// Collector records one sample per dispatch. It implements mcp.Observer.
type Collector struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	denials  *prometheus.CounterVec
}

// New creates a collector on a private registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by operation and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency, including store round trips.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tool"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_denials_total",
			Help:      "Invocations rejected by Rego deny rules.",
		}, []string{"tool"}),
	}
	c.registry.MustRegister(
		c.calls,
		c.duration,
		c.denials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveDispatch implements mcp.Observer.
func (c *Collector) ObserveDispatch(_ context.Context, e mcp.Event) {
	tool := string(e.Operation)
	if tool == "" {
		tool = unknownTool
	}
	c.calls.WithLabelValues(tool, string(e.Outcome)).Inc()
	c.duration.WithLabelValues(tool).Observe(e.Duration.Seconds())
	if e.Outcome == mcp.OutcomeDenied {
		c.denials.WithLabelValues(tool).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
