package softlane

import (
	"context"
	"fmt"
	"strings"
)

// preferredLinkTable maps a caller-supplied session link-preference index to
// a LaneLinkType, mirroring the original source's fixed g_laneMap array
// consulted by TransformSessionPreferredToLanePreferred. Entries mapping to
// LaneLinkButt are dropped by translatePreferredLinks below.
var preferredLinkTable = []LaneLinkType{
	LaneLinkWLAN5G,
	LaneLinkWLAN2P4G,
	LaneLinkP2P,
	LaneLinkBR,
	LaneLinkBLE,
	LaneLinkP2PReuse,
	LaneLinkBLEDirect,
	LaneLinkCoC,
	LaneLinkCoCDirect,
	LaneLinkETH,
}

// shapedRequest is the shaper's output: either a legacy LaneRequestOption or
// a QoS LaneAllocInfo, tagged by IsQosLane.
type shapedRequest struct {
	IsQosLane bool
	Request   LaneRequestOption
	Alloc     LaneAllocInfo
}

// shape derives an allocation request from a caller-supplied SessionParam,
// applying spec §4.2's ten ordered policies. It is grounded on the original
// source's GetRequestOptionBySessionParam (legacy path) and
// GetAllocInfoBySessionParam (QoS path), which share every policy up to the
// final QoS-vector extraction step.
func (c *Controller) shape(ctx context.Context, param SessionParam) (shapedRequest, error) {
	isQosLane := param.IsQosLane

	// Policy 1: transport-type derivation.
	transport, err := deriveTransportType(param)
	if err != nil {
		return shapedRequest{}, err
	}

	// Policy 2: peer identification.
	peerNetworkID := param.PeerNetworkID

	// Policy 3: network-delegate override.
	networkDelegate := param.SessionName == SessionNamePhonepadConnect || param.SessionName == SessionNameCastPlus

	// Policy 4: p2p-only override (legacy path only).
	p2pOnly := isShareSession(param.SessionName) || param.SessionName == SessionNameBoosterdUser

	// Policy 5: acceptable protocols.
	acceptable := ProtocolAll &^ ProtocolNIP
	if c.cfg.peerLedger != nil {
		node, nodeErr := c.cfg.peerLedger.GetRemoteNode(ctx, peerNetworkID)
		if nodeErr == nil && c.cfg.peerLedger.HasDiscoveryType(node, DiscoveryTypeLSA) {
			acceptable |= ProtocolNIP
		}
	}

	// Policy 6: preferred-link translation.
	preferred := translatePreferredLinks(param.Attr.PreferredLink, c.cfg.linkTypeCap)

	// Policy 7: legacy-OS / mesh adaptation.
	if c.cfg.peerLedger != nil {
		authCapacity, _ := c.cfg.peerLedger.GetAuthCapacity(ctx, peerNetworkID)
		if isLegacyOrMesh(authCapacity, param.SessionName) {
			preferred = []LaneLinkType{LaneLinkWLAN5G, LaneLinkWLAN2P4G, LaneLinkBR}
			isQosLane = false
		}
	}

	// Policy 10: uid/pid resolution.
	pid := param.Pid
	if c.cfg.uidPid != nil {
		_, resolvedPid, err := c.cfg.uidPid.Lookup(ctx, param.SessionName)
		if err != nil {
			return shapedRequest{}, fmt.Errorf("%w: %v", ErrUpstreamLane, err)
		}
		pid = resolvedPid
	}

	if !isQosLane {
		req := LaneRequestOption{
			PeerNetworkID:       peerNetworkID,
			Transport:           transport,
			AcceptableProtocols: acceptable,
			Pid:                 pid,
			NetworkDelegate:     networkDelegate,
			P2POnly:             p2pOnly,
			ExpectedLink:        preferred,
		}
		req.PeerBLEMac = c.resolveBleMac(ctx, peerNetworkID)
		return shapedRequest{IsQosLane: false, Request: req}, nil
	}

	// Policy 8: QoS extraction (QoS path only).
	qos := extractQos(param.Attr.Qos)

	alloc := LaneAllocInfo{
		PeerNetworkID:       peerNetworkID,
		Transport:           transport,
		AcceptableProtocols: acceptable,
		Pid:                 pid,
		NetworkDelegate:     networkDelegate,
		ExpectedLink:        preferred,
		Qos:                 qos,
	}
	// Policy 9: BLE MAC (constrained-platform only).
	alloc.PeerBLEMac = c.resolveBleMac(ctx, peerNetworkID)

	return shapedRequest{IsQosLane: true, Alloc: alloc}, nil
}

// deriveTransportType maps session attributes to a transport type (policy 1).
// The reference source derives this from the session's own type field; this
// port has no such field, so every session with a non-empty name maps to
// TCP and an empty session name is rejected with ErrInvalidSessionType. TCP
// is the only transport this module's ChannelOpener reference
// implementation exercises end-to-end.
func deriveTransportType(param SessionParam) (TransportType, error) {
	if param.SessionName == "" {
		return TransportTypeUnknown, fmt.Errorf("%w: empty session name", ErrInvalidSessionType)
	}
	return TransportTypeTCP, nil
}

// isShareSession reports whether sessionName carries the IShare prefix at
// or above the minimum length spec §4.2 policy 4 requires.
func isShareSession(sessionName string) bool {
	if len(sessionName) < IShareMinNameLen {
		return false
	}
	return strings.HasPrefix(sessionName, SessionNamePrefixIShare)
}

// isLegacyOrMesh implements spec §4.2 policy 7: a mesh-sync session (any
// device.security.level-prefixed name) forces the override regardless of
// auth capacity, OR'd with the legacy-OS branch (auth_capacity==0 together
// with a distributeddata-default-prefixed session name). Both name checks
// are prefix matches, mirroring the original's strncmp.
func isLegacyOrMesh(authCapacity uint32, sessionName string) bool {
	if strings.HasPrefix(sessionName, SessionNameSecurityLevel) {
		return true
	}
	return authCapacity == 0 && strings.HasPrefix(sessionName, SessionNameDistributedData)
}

// translatePreferredLinks maps the caller's preferred-link array through
// preferredLinkTable, dropping entries that land on LaneLinkButt, in order
// (spec §4.2 policy 6). An empty input or an input longer than linkCap
// yields an empty list entirely, matching
// TransformSessionPreferredToLanePreferred's "linkTypeNum <= 0 ||
// linkTypeNum > LINK_TYPE_MAX" whole-list rejection — this is a count gate
// on the input, not a truncation of the output.
func translatePreferredLinks(in []LaneLinkType, linkCap int) []LaneLinkType {
	if linkCap <= 0 {
		linkCap = LinkTypeCap
	}
	if len(in) == 0 || len(in) > linkCap {
		return nil
	}
	out := make([]LaneLinkType, 0, len(in))
	for _, idx := range in {
		if int(idx) < 0 || int(idx) >= len(preferredLinkTable) {
			continue
		}
		mapped := preferredLinkTable[idx]
		if mapped == LaneLinkButt {
			continue
		}
		out = append(out, mapped)
	}
	return out
}

// extractQos implements spec §4.2 policy 8.
func extractQos(items []QosItem) QosRequirement {
	var q QosRequirement
	for _, item := range items {
		switch item.Kind {
		case QosMinBW:
			q.MinBW = item.Value
		case QosMaxLatency:
			q.MaxLaneLatency = item.Value
		case QosMinLatency:
			q.MinLaneLatency = item.Value
		case QosRTTLevel:
			if item.Value < 0 {
				q.RTTLevel = 0
			} else {
				q.RTTLevel = item.Value
			}
		}
	}
	return q
}

// resolveBleMac implements spec §4.2 policy 9: resolve the peer's BLE MAC on
// constrained platforms, tolerating an empty string on failure (grounded on
// TransGetBleMac/TransGetBleMacForAllocLane's SOFTBUS_MINI_SYSTEM guard —
// here exercised unconditionally since this port targets one build, not a
// compile-time platform split).
func (c *Controller) resolveBleMac(ctx context.Context, networkID string) string {
	if c.cfg.peerLedger == nil {
		return ""
	}
	mac, err := c.cfg.peerLedger.GetRemoteStr(ctx, networkID, "BLE_MAC")
	if err != nil {
		return ""
	}
	return mac
}
