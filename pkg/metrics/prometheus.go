package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	candlesIngested *prometheus.CounterVec
	signalsTotal    *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	bufferLen       *prometheus.GaugeVec
	lastClose       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finadv_candles_ingested_total",
				Help: "Total number of closed candles ingested",
			},
			[]string{"symbol", "timeframe"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finadv_signals_total",
				Help: "Total number of model signals emitted",
			},
			[]string{"symbol", "class"},
		),
		decisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finadv_decisions_total",
				Help: "Total number of gated final decisions",
			},
			[]string{"symbol", "decision", "setup_valid"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finadv_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		bufferLen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finadv_candle_buffer_len",
				Help: "Current candle buffer length per symbol",
			},
			[]string{"symbol"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finadv_last_close",
				Help: "Last observed close price per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finadv_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandle records one ingested candle.
func (r *Recorder) RecordCandle(symbol, tf string) {
	r.candlesIngested.WithLabelValues(symbol, tf).Inc()
}

// RecordSignal records one emitted signal.
func (r *Recorder) RecordSignal(symbol, class string) {
	r.signalsTotal.WithLabelValues(symbol, class).Inc()
}

// RecordDecision records one gated decision.
func (r *Recorder) RecordDecision(symbol, decision string, valid bool) {
	v := "false"
	if valid {
		v = "true"
	}
	r.decisionsTotal.WithLabelValues(symbol, decision, v).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordBufferLen records the current candle buffer length.
func (r *Recorder) RecordBufferLen(symbol string, n int) {
	r.bufferLen.WithLabelValues(symbol).Set(float64(n))
}

// RecordLastClose records the last close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
