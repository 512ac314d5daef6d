package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketwatch"

// Recorder implements the domain Metrics port using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	frames       *prometheus.CounterVec
	streamState  *prometheus.GaugeVec
	universe     prometheus.Gauge
	signals      *prometheus.CounterVec
	alerts       *prometheus.CounterVec
}

// StreamStates are the label values of the stream state gauge.
var StreamStates = []string{"disconnected", "connecting", "connected", "cancelled"}

// New registers the collectors on the default registry.
func New() *Recorder { return NewWithRegisterer(prometheus.DefaultRegisterer) }

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Signals written to the storage backend.",
		}, []string{"backend", "symbol"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by kind.",
		}, []string{"type"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Last streamed close per symbol.",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Stream frames by kind.",
		}, []string{"kind"}),
		streamState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "1 for the current ingestor state, 0 otherwise.",
		}, []string{"state"}),
		universe: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "universe_size",
			Help:      "Number of monitored symbols.",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Scored signals by category.",
		}, []string{"category"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert outcomes (sent, suppressed, failed).",
		}, []string{"result"}),
	}
}

func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordFrame(kind string) {
	r.frames.WithLabelValues(kind).Inc()
}

// SetStreamState sets state to 1 and every other state to 0.
func (r *Recorder) SetStreamState(state string) {
	for _, s := range StreamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.streamState.WithLabelValues(s).Set(v)
	}
}

func (r *Recorder) SetUniverseSize(n int) {
	r.universe.Set(float64(n))
}

func (r *Recorder) RecordSignal(category string) {
	r.signals.WithLabelValues(category).Inc()
}

func (r *Recorder) RecordAlert(result string) {
	r.alerts.WithLabelValues(result).Inc()
}
