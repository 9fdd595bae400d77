package channeltransport

import (
	"net"
	"sync/atomic"
)

// TransportMetrics holds counters for dials, accepts, handshake failures,
// and the bytes that cross the encrypted channel. Dial, Accept, Read and
// Write in this package do not update them; a Conn's GetMetrics returns the
// configured instance with whatever counts its owner has recorded.
type TransportMetrics interface {
	IncrementDials()
	IncrementAccepts()
	IncrementHandshakeFailures()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)

	GetDials() int64
	GetAccepts() int64
	GetHandshakeFailures() int64
	GetBytesSent() int64
	GetBytesReceived() int64
}

// DefaultMetrics implements TransportMetrics with atomic counters.
type DefaultMetrics struct {
	dials              int64
	accepts            int64
	handshakeFailures  int64
	bytesSent          int64
	bytesReceived      int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementDials()             { atomic.AddInt64(&m.dials, 1) }
func (m *DefaultMetrics) IncrementAccepts()           { atomic.AddInt64(&m.accepts, 1) }
func (m *DefaultMetrics) IncrementHandshakeFailures() { atomic.AddInt64(&m.handshakeFailures, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)     { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) { atomic.AddInt64(&m.bytesReceived, n) }

func (m *DefaultMetrics) GetDials() int64             { return atomic.LoadInt64(&m.dials) }
func (m *DefaultMetrics) GetAccepts() int64           { return atomic.LoadInt64(&m.accepts) }
func (m *DefaultMetrics) GetHandshakeFailures() int64 { return atomic.LoadInt64(&m.handshakeFailures) }
func (m *DefaultMetrics) GetBytesSent() int64         { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64     { return atomic.LoadInt64(&m.bytesReceived) }

// GetMetrics returns the metrics from a connection if it supports metrics
// tracking. It returns nil if the connection doesn't support metrics.
func GetMetrics(c net.Conn) TransportMetrics {
	type metricsProvider interface{ GetMetrics() TransportMetrics }
	if mp, ok := c.(metricsProvider); ok {
		return mp.GetMetrics()
	}
	return nil
}
