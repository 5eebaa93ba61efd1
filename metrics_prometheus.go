package oren

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics is a MetricsCollector backed by Prometheus collectors.
type PrometheusMetrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	errors         *prometheus.CounterVec
	loginLatency   prometheus.Histogram
	pingRTT        prometheus.Histogram
	sessionState   prometheus.Gauge
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
}

// NewPrometheusMetrics registers the client collectors with reg under the
// given namespace. Pass prometheus.DefaultRegisterer to expose them through
// promhttp.Handler(); two clients sharing a registerer need distinct
// namespaces.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "The total number of data frame transmission attempts.",
		}, []string{"data_type"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "The total number of data frames delivered to the application.",
		}, []string{"data_type"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors by type.",
		}, []string{"type"}),
		loginLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "login_latency_seconds",
			Help:      "Time from Login to a successful login reply.",
			Buckets:   prometheus.DefBuckets,
		}),
		pingRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ping_rtt_seconds",
			Help:      "Round-trip time of successful ping probes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		sessionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (0 unknown, 1 logging in, 2 online, 3 offline).",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "The total number of payload bytes delivered.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "The total number of payload bytes received.",
		}),
	}
}

func (p *PrometheusMetrics) IncrementFrameSent(dataType DataType) {
	p.framesSent.WithLabelValues(dataType.String()).Inc()
}

func (p *PrometheusMetrics) IncrementFrameReceived(dataType DataType) {
	p.framesReceived.WithLabelValues(dataType.String()).Inc()
}

func (p *PrometheusMetrics) IncrementError(errorType string) {
	p.errors.WithLabelValues(errorType).Inc()
}

func (p *PrometheusMetrics) RecordLoginLatency(duration time.Duration) {
	p.loginLatency.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) RecordPingRTT(rtt time.Duration) {
	p.pingRTT.Observe(rtt.Seconds())
}

func (p *PrometheusMetrics) SetSessionState(state State) {
	p.sessionState.Set(float64(state))
}

func (p *PrometheusMetrics) AddBytesSent(bytes uint64) {
	p.bytesSent.Add(float64(bytes))
}

func (p *PrometheusMetrics) AddBytesReceived(bytes uint64) {
	p.bytesReceived.Add(float64(bytes))
}
