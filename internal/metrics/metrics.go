// Package metrics exposes runtime counters to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/fault"
)

// ResultOK labels successful commands. Failures are labelled with their
// lowercased fault code.
const ResultOK = "ok"

// unknownCommand labels command names the dispatcher does not handle, so
// arbitrary client input cannot grow the label set.
const unknownCommand = "unknown"

// Metrics holds the Prometheus collectors for one runtime.
//
// Thread-safety: every method is safe for concurrent use.
type Metrics struct {
	registry       *prometheus.Registry
	ticksTotal     prometheus.Counter
	missedTotal    prometheus.Counter
	tickLag        prometheus.Histogram
	commandsTotal  *prometheus.CounterVec
	mirrorFailures *prometheus.CounterVec
	onAir          prometheus.Gauge
	known          map[string]bool
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	ticksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showrunner_ticks_total",
		Help: "Total number of processed engine ticks",
	})
	missedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showrunner_missed_ticks_total",
		Help: "Total number of ticks that arrived later than interval plus tolerance",
	})
	tickLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "showrunner_missed_tick_lag_seconds",
		Help:    "Lag of missed ticks beyond the tick interval",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	})
	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showrunner_commands_total",
		Help: "Total number of dispatched commands by name and result",
	}, []string{"command", "result"})
	mirrorFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showrunner_mirror_failures_total",
		Help: "Total number of failed mirror writes by sink",
	}, []string{"sink"})
	onAir := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "showrunner_on_air",
		Help: "1 while the playback machine is not stopped",
	})

	registry.MustRegister(
		ticksTotal,
		missedTotal,
		tickLag,
		commandsTotal,
		mirrorFailures,
		onAir,
	)

	known := make(map[string]bool)
	for _, name := range dispatch.Commands() {
		known[name] = true
	}

	return &Metrics{
		registry:       registry,
		ticksTotal:     ticksTotal,
		missedTotal:    missedTotal,
		tickLag:        tickLag,
		commandsTotal:  commandsTotal,
		mirrorFailures: mirrorFailures,
		onAir:          onAir,
		known:          known,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TickProcessed counts one engine tick.
func (m *Metrics) TickProcessed() {
	m.ticksTotal.Inc()
}

// TickMissed counts a late tick and records its lag.
func (m *Metrics) TickMissed(lag time.Duration) {
	m.missedTotal.Inc()
	m.tickLag.Observe(lag.Seconds())
}

// CommandHandled counts a dispatched command. name must already be folded.
func (m *Metrics) CommandHandled(name string, err error) {
	if !m.known[name] {
		name = unknownCommand
	}
	result := ResultOK
	if err != nil {
		result = strings.ToLower(string(fault.CodeOf(err)))
	}
	m.commandsTotal.WithLabelValues(name, result).Inc()
}

// MirrorFailed counts a failed write to the named mirror sink.
func (m *Metrics) MirrorFailed(sink string) {
	m.mirrorFailures.WithLabelValues(sink).Inc()
}

// OnAir sets the on-air gauge.
func (m *Metrics) OnAir(onAir bool) {
	if onAir {
		m.onAir.Set(1)
		return
	}
	m.onAir.Set(0)
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
