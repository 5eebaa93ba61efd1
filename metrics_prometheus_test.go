package oren

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatheredValue returns the value of a counter or gauge sample in reg.
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s%v", name, labels)
	return 0
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg, "oren")

	m.IncrementFrameSent(AudioData)
	m.IncrementFrameSent(AudioData)
	m.IncrementFrameReceived(VideoData)
	m.IncrementError("lost")
	m.SetSessionState(StateOnline)
	m.AddBytesSent(128)
	m.AddBytesReceived(64)
	m.RecordPingRTT(20 * time.Millisecond)
	m.RecordLoginLatency(150 * time.Millisecond)

	assert.Equal(t, 2.0, gatheredValue(t, reg, "oren_frames_sent_total", map[string]string{"data_type": "audio"}))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "oren_frames_received_total", map[string]string{"data_type": "video"}))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "oren_errors_total", map[string]string{"type": "lost"}))
	assert.Equal(t, float64(StateOnline), gatheredValue(t, reg, "oren_session_state", nil))
	assert.Equal(t, 128.0, gatheredValue(t, reg, "oren_sent_bytes_total", nil))
	assert.Equal(t, 64.0, gatheredValue(t, reg, "oren_received_bytes_total", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"oren_frames_sent_total",
		"oren_frames_received_total",
		"oren_errors_total",
		"oren_login_latency_seconds",
		"oren_ping_rtt_seconds",
		"oren_session_state",
		"oren_sent_bytes_total",
		"oren_received_bytes_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestPrometheusMetricsAsClientCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg, "oren_client")

	env := newTestEnv(t, func(cfg *ClientConfig) { cfg.Metrics = m })
	env.login(t)
	env.startLine(t, 1)

	d, err := env.client.SendData(1, UserData, []byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, waitDelivery(t, d))

	assert.Equal(t, float64(StateOnline), gatheredValue(t, reg, "oren_client_session_state", nil))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "oren_client_frames_sent_total", map[string]string{"data_type": "user"}))
	assert.Equal(t, 7.0, gatheredValue(t, reg, "oren_client_sent_bytes_total", nil))
}
