package softlane

import "sync/atomic"

// Metrics tracks the KPI/alarm events spec §4.5 names, grounded line-for-line
// on channeltransport's atomic-counter TransportMetrics/DefaultMetrics pair.
type Metrics interface {
	IncrementOpenChannelSuccess()
	IncrementOpenChannelFail()
	IncrementLaneFreed()
	IncrementRegistryReject()
	IncrementSyncTimeout()

	GetOpenChannelSuccess() int64
	GetOpenChannelFail() int64
	GetLaneFreed() int64
	GetRegistryReject() int64
	GetSyncTimeout() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	openChannelSuccess int64
	openChannelFail    int64
	laneFreed          int64
	registryReject     int64
	syncTimeout        int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementOpenChannelSuccess() { atomic.AddInt64(&m.openChannelSuccess, 1) }
func (m *DefaultMetrics) IncrementOpenChannelFail()    { atomic.AddInt64(&m.openChannelFail, 1) }
func (m *DefaultMetrics) IncrementLaneFreed()          { atomic.AddInt64(&m.laneFreed, 1) }
func (m *DefaultMetrics) IncrementRegistryReject()     { atomic.AddInt64(&m.registryReject, 1) }
func (m *DefaultMetrics) IncrementSyncTimeout()        { atomic.AddInt64(&m.syncTimeout, 1) }

func (m *DefaultMetrics) GetOpenChannelSuccess() int64 { return atomic.LoadInt64(&m.openChannelSuccess) }
func (m *DefaultMetrics) GetOpenChannelFail() int64    { return atomic.LoadInt64(&m.openChannelFail) }
func (m *DefaultMetrics) GetLaneFreed() int64          { return atomic.LoadInt64(&m.laneFreed) }
func (m *DefaultMetrics) GetRegistryReject() int64     { return atomic.LoadInt64(&m.registryReject) }
func (m *DefaultMetrics) GetSyncTimeout() int64        { return atomic.LoadInt64(&m.syncTimeout) }
