package oren

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting client metrics.
// This interface allows applications to plug in custom metrics implementations
// (Prometheus, StatsD, custom logging) for production monitoring.
//
// All methods are safe for concurrent use and should be non-blocking. The
// engine calls them while holding its state lock.
type MetricsCollector interface {
	// IncrementFrameSent counts one transmission attempt of the given type.
	IncrementFrameSent(dataType DataType)

	// IncrementFrameReceived counts one forwarded inbound frame of the given type.
	IncrementFrameReceived(dataType DataType)

	// IncrementError increments the error counter by error type
	// (e.g. "login", "lost", "discovery", "disconnect").
	IncrementError(errorType string)

	// RecordLoginLatency records the time from Login to a successful reply.
	RecordLoginLatency(duration time.Duration)

	// RecordPingRTT records a successful ping round-trip time.
	RecordPingRTT(rtt time.Duration)

	// SetSessionState updates the current session state.
	SetSessionState(state State)

	// AddBytesSent adds delivered payload bytes.
	AddBytesSent(bytes uint64)

	// AddBytesReceived adds received payload bytes.
	AddBytesReceived(bytes uint64)
}

// InMemoryMetrics provides a simple in-memory implementation of MetricsCollector.
// Suitable for development, testing, and applications that want basic metrics
// without external dependencies.
type InMemoryMetrics struct {
	framesSent     [3]uint64 // indexed by DataType
	framesReceived [3]uint64

	errorsMu     sync.RWMutex
	errorsByType map[string]uint64

	latencyMu    sync.RWMutex
	loginLatency latencyStats
	pingRTT      latencyStats

	sessionState atomic.Int32

	bytesSent     uint64
	bytesReceived uint64
}

// latencyStats tracks min/max/avg of a duration series
type latencyStats struct {
	count      uint64
	totalNanos uint64
	minNanos   uint64
	maxNanos   uint64
}

func (s *latencyStats) record(d time.Duration) {
	nanos := uint64(d.Nanoseconds())
	if s.count == 0 || nanos < s.minNanos {
		s.minNanos = nanos
	}
	if nanos > s.maxNanos {
		s.maxNanos = nanos
	}
	s.count++
	s.totalNanos += nanos
}

func (s *latencyStats) avg() time.Duration {
	if s.count == 0 {
		return 0
	}
	return time.Duration(s.totalNanos / s.count)
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		errorsByType: make(map[string]uint64),
	}
}

func dataTypeIndex(t DataType) int {
	if int(t) < 3 {
		return int(t)
	}
	return int(UserData)
}

// IncrementFrameSent increments the sent frame counter for the given type.
func (m *InMemoryMetrics) IncrementFrameSent(dataType DataType) {
	atomic.AddUint64(&m.framesSent[dataTypeIndex(dataType)], 1)
}

// IncrementFrameReceived increments the received frame counter for the given type.
func (m *InMemoryMetrics) IncrementFrameReceived(dataType DataType) {
	atomic.AddUint64(&m.framesReceived[dataTypeIndex(dataType)], 1)
}

// IncrementError increments the error counter for the given error type.
func (m *InMemoryMetrics) IncrementError(errorType string) {
	m.errorsMu.Lock()
	m.errorsByType[errorType]++
	m.errorsMu.Unlock()
}

// RecordLoginLatency records a login latency sample.
func (m *InMemoryMetrics) RecordLoginLatency(duration time.Duration) {
	m.latencyMu.Lock()
	m.loginLatency.record(duration)
	m.latencyMu.Unlock()
}

// RecordPingRTT records a ping RTT sample.
func (m *InMemoryMetrics) RecordPingRTT(rtt time.Duration) {
	m.latencyMu.Lock()
	m.pingRTT.record(rtt)
	m.latencyMu.Unlock()
}

// SetSessionState updates the session state gauge.
func (m *InMemoryMetrics) SetSessionState(state State) {
	m.sessionState.Store(int32(state))
}

// AddBytesSent adds to the total bytes sent.
func (m *InMemoryMetrics) AddBytesSent(bytes uint64) {
	atomic.AddUint64(&m.bytesSent, bytes)
}

// AddBytesReceived adds to the total bytes received.
func (m *InMemoryMetrics) AddBytesReceived(bytes uint64) {
	atomic.AddUint64(&m.bytesReceived, bytes)
}

// Getter methods for programmatic access to metrics

// FramesSent returns the count of sent frames of a type.
func (m *InMemoryMetrics) FramesSent(dataType DataType) uint64 {
	return atomic.LoadUint64(&m.framesSent[dataTypeIndex(dataType)])
}

// FramesReceived returns the count of received frames of a type.
func (m *InMemoryMetrics) FramesReceived(dataType DataType) uint64 {
	return atomic.LoadUint64(&m.framesReceived[dataTypeIndex(dataType)])
}

// Errors returns the total count of errors by type.
func (m *InMemoryMetrics) Errors(errorType string) uint64 {
	m.errorsMu.RLock()
	defer m.errorsMu.RUnlock()
	return m.errorsByType[errorType]
}

// AllErrors returns a copy of all error counts by type.
func (m *InMemoryMetrics) AllErrors() map[string]uint64 {
	m.errorsMu.RLock()
	defer m.errorsMu.RUnlock()

	result := make(map[string]uint64, len(m.errorsByType))
	for k, v := range m.errorsByType {
		result[k] = v
	}
	return result
}

// AvgLoginLatency returns the average login latency, 0 without samples.
func (m *InMemoryMetrics) AvgLoginLatency() time.Duration {
	m.latencyMu.RLock()
	defer m.latencyMu.RUnlock()
	return m.loginLatency.avg()
}

// AvgPingRTT returns the average ping RTT, 0 without samples.
func (m *InMemoryMetrics) AvgPingRTT() time.Duration {
	m.latencyMu.RLock()
	defer m.latencyMu.RUnlock()
	return m.pingRTT.avg()
}

// MaxPingRTT returns the largest ping RTT seen.
func (m *InMemoryMetrics) MaxPingRTT() time.Duration {
	m.latencyMu.RLock()
	defer m.latencyMu.RUnlock()
	return time.Duration(m.pingRTT.maxNanos)
}

// SessionState returns the last reported session state.
func (m *InMemoryMetrics) SessionState() State {
	return State(m.sessionState.Load())
}

// BytesSent returns the total bytes sent.
func (m *InMemoryMetrics) BytesSent() uint64 {
	return atomic.LoadUint64(&m.bytesSent)
}

// BytesReceived returns the total bytes received.
func (m *InMemoryMetrics) BytesReceived() uint64 {
	return atomic.LoadUint64(&m.bytesReceived)
}

// Reset clears all metrics. Useful for testing.
func (m *InMemoryMetrics) Reset() {
	for i := range m.framesSent {
		atomic.StoreUint64(&m.framesSent[i], 0)
		atomic.StoreUint64(&m.framesReceived[i], 0)
	}

	m.errorsMu.Lock()
	m.errorsByType = make(map[string]uint64)
	m.errorsMu.Unlock()

	m.latencyMu.Lock()
	m.loginLatency = latencyStats{}
	m.pingRTT = latencyStats{}
	m.latencyMu.Unlock()

	m.sessionState.Store(int32(StateUnknown))

	atomic.StoreUint64(&m.bytesSent, 0)
	atomic.StoreUint64(&m.bytesReceived, 0)
}
