package main

import (
	"context"
	"sync/atomic"

	softlane "github.com/atsika/softlane"
)

// simLaneManager is an in-memory LaneManager fake: every request succeeds
// immediately with a synthetic WLAN LaneConnInfo pointing at host:port.
type simLaneManager struct {
	host    string
	port    int
	counter uint32
}

func (m *simLaneManager) MintHandle(ctx context.Context) (softlane.LaneHandle, error) {
	return softlane.LaneHandle(atomic.AddUint32(&m.counter, 1)), nil
}

func (m *simLaneManager) RequestLane(ctx context.Context, handle softlane.LaneHandle, opt softlane.LaneRequestOption, cb softlane.LaneCallback) error {
	go cb.OnSuccess(handle, m.connInfo())
	return nil
}

func (m *simLaneManager) AllocLane(ctx context.Context, handle softlane.LaneHandle, info softlane.LaneAllocInfo, cb softlane.LaneCallback) error {
	go cb.OnSuccess(handle, m.connInfo())
	return nil
}

func (m *simLaneManager) FreeLane(ctx context.Context, handle softlane.LaneHandle) error {
	return nil
}

func (m *simLaneManager) connInfo() softlane.LaneConnInfo {
	return softlane.LaneConnInfo{
		LinkType: softlane.LaneLinkWLAN5G,
		Addr:     m.host,
		Port:     m.port,
		Protocol: softlane.ProtocolIP,
	}
}

// simPeerLedger is a PeerLedger fake that reports an unremarkable peer node
// with no mesh/legacy overrides and full auth capacity.
type simPeerLedger struct{}

func (simPeerLedger) GetRemoteNode(ctx context.Context, networkID string) (softlane.NodeInfo, error) {
	return softlane.NodeInfo{NetworkID: networkID, AuthCapacity: 1}, nil
}

func (simPeerLedger) HasDiscoveryType(node softlane.NodeInfo, kind softlane.DiscoveryType) bool {
	return false
}

func (simPeerLedger) GetRemoteStr(ctx context.Context, networkID, key string) (string, error) {
	return "", softlane.ErrNotFound
}

func (simPeerLedger) GetRemoteNum(ctx context.Context, networkID, key string) (int32, error) {
	return 0, softlane.ErrNotFound
}

func (simPeerLedger) GetAuthCapacity(ctx context.Context, networkID string) (uint32, error) {
	return 1, nil
}
