package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics collects console-side counters. A nil *Metrics records nothing.
type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	reloads        *prometheus.CounterVec
	pollTicks      *prometheus.CounterVec
	pollerActive   prometheus.Gauge
	actions        *prometheus.CounterVec
}

// New registers the console collectors on reg. Collectors already registered
// by an earlier call are reused.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "api_requests_total",
			Help:      "Count of control plane requests by route and status",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "api_request_duration_seconds",
			Help:      "Latency distribution of control plane requests",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "mirror_reloads_total",
			Help:      "Resource mirror reload outcomes",
		}, []string{"outcome"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "poller_ticks_total",
			Help:      "Reconciliation poller ticks by outcome",
		}, []string{"outcome"}),
		pollerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "poller_active",
			Help:      "1 while the reconciliation poller is active",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keystone",
			Subsystem: "console",
			Name:      "actions_total",
			Help:      "Gateway actions by name and outcome",
		}, []string{"action", "outcome"}),
	}
	m.requestTotal = register(reg, m.requestTotal)
	m.requestLatency = register(reg, m.requestLatency)
	m.reloads = register(reg, m.reloads)
	m.pollTicks = register(reg, m.pollTicks)
	m.pollerActive = register(reg, m.pollerActive)
	m.actions = register(reg, m.actions)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveRequest matches client.Observer.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(elapsed.Seconds())
}

// Reload records the outcome of a mirror reload.
func (m *Metrics) Reload(err error) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome(err)).Inc()
}

// PollTick records one poller iteration.
func (m *Metrics) PollTick(result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(result).Inc()
}

// PollerActive tracks the poller state.
func (m *Metrics) PollerActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.pollerActive.Set(1)
		return
	}
	m.pollerActive.Set(0)
}

// Action records a gateway action outcome.
func (m *Metrics) Action(name string, err error) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(name, outcome(err)).Inc()
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
