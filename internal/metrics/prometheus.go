package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects engine metrics into its own registry.
type Recorder struct {
	registry       *prometheus.Registry
	pollsTotal     *prometheus.CounterVec
	alertsTotal    *prometheus.CounterVec
	sinkFailures   prometheus.Counter
	lastPrice      *prometheus.GaugeVec
	classification *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotealert_polls_total",
				Help: "Poll cycles by outcome",
			},
			[]string{"outcome"},
		),
		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotealert_alerts_total",
				Help: "Alerts emitted by direction",
			},
			[]string{"instrument", "direction"},
		),
		sinkFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quotealert_sink_failures_total",
				Help: "Alert deliveries that failed",
			},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotealert_last_price",
				Help: "Last normalized price for the tracked instrument",
			},
			[]string{"instrument", "currency"},
		),
		classification: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotealert_classification",
				Help: "Current band classification (-1 below, 0 inside, 1 above)",
			},
			[]string{"instrument"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotealert_upstream_duration_seconds",
				Help:    "Duration of upstream calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the underlying registry for the HTTP handler and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordPoll counts a finished poll cycle.
func (r *Recorder) RecordPoll(outcome string) {
	r.pollsTotal.WithLabelValues(outcome).Inc()
}

// RecordAlert counts an emitted alert.
func (r *Recorder) RecordAlert(instrument, direction string) {
	r.alertsTotal.WithLabelValues(instrument, direction).Inc()
}

// RecordSinkFailure counts a failed delivery.
func (r *Recorder) RecordSinkFailure() {
	r.sinkFailures.Inc()
}

// RecordPrice stores the last normalized price and classification.
func (r *Recorder) RecordPrice(instrument, currency string, price float64, class int) {
	r.lastPrice.WithLabelValues(instrument, currency).Set(price)
	r.classification.WithLabelValues(instrument).Set(float64(class))
}

// RecordLatency records upstream latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}
