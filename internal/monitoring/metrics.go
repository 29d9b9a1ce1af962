package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle outcomes used as the "result" label.
const (
	CycleOK      = "ok"
	CyclePartial = "partial"
	CycleAborted = "aborted"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesForwarded prometheus.Counter
	DeliveryFailures  prometheus.Counter
	FetchFailures     prometheus.Counter
	Cycles            *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	Cursor            prometheus.Gauge
	LastSuccess       prometheus.Gauge
}

// NewMetrics registers the relay collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_messages_forwarded_total",
			Help: "Messages delivered to the chat endpoint",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_delivery_failures_total",
			Help: "Delivery attempts rejected or failed in transport",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mailrelay_fetch_failures_total",
			Help: "Messages that could not be fetched from the mailbox",
		}),
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelay_cycles_total",
			Help: "Polling cycles by outcome",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailrelay_cycle_duration_seconds",
			Help:    "Wall time of one polling cycle",
			Buckets: prometheus.DefBuckets,
		}),
		Cursor: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mailrelay_cursor_uid",
			Help: "Highest UID fully processed",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mailrelay_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that reached the mailbox",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Forwarded() {
	if m == nil {
		return
	}
	m.MessagesForwarded.Inc()
}

func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.FetchFailures.Inc()
}

func (m *Metrics) SetCursor(uid uint32) {
	if m == nil {
		return
	}
	m.Cursor.Set(float64(uid))
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
	if result != CycleAborted {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}
