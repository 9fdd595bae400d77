// Package softlane implements the Lane Pending Controller: it turns a
// caller's SessionParam into a concrete transport channel by shaping a lane
// request, rendezvousing the Lane Manager's asynchronous allocation result
// back to either a blocked caller or an async continuation, translating the
// resulting LaneConnInfo into a ConnectOption, and driving the follow-on
// channel open and lifecycle registration.
//
// The Lane Manager's own selection algorithm, the real channel-open
// implementation, the IPC/session layer, and packaging are out of scope —
// this package only specifies and consumes the interfaces in
// collaborators.go.
package softlane

import "time"

// LaneHandle is an opaque identifier minted by the Lane Manager, unique per
// open request for the life of the process.
type LaneHandle uint32

// LaneLinkType enumerates the physical/virtual link kinds a lane can bind
// to. LaneLinkButt is the sentinel "no link" / translation-failure value,
// matching g_laneMap's LANE_LINK_TYPE_BUTT cap in the original source.
type LaneLinkType int

const (
	LaneLinkWLAN5G LaneLinkType = iota
	LaneLinkWLAN2P4G
	LaneLinkP2P
	LaneLinkBR
	LaneLinkBLE
	LaneLinkP2PReuse
	LaneLinkBLEDirect
	LaneLinkCoC
	LaneLinkCoCDirect
	LaneLinkETH
	LaneLinkButt
)

func (t LaneLinkType) String() string {
	switch t {
	case LaneLinkWLAN5G:
		return "WLAN_5G"
	case LaneLinkWLAN2P4G:
		return "WLAN_2P4G"
	case LaneLinkP2P:
		return "P2P"
	case LaneLinkBR:
		return "BR"
	case LaneLinkBLE:
		return "BLE"
	case LaneLinkP2PReuse:
		return "P2P_REUSE"
	case LaneLinkBLEDirect:
		return "BLE_DIRECT"
	case LaneLinkCoC:
		return "COC"
	case LaneLinkCoCDirect:
		return "COC_DIRECT"
	case LaneLinkETH:
		return "ETH"
	default:
		return "BUTT"
	}
}

// TransportType is the session-attribute-derived transport kind a
// LaneRequestOption/LaneAllocInfo is shaped for.
type TransportType int

const (
	TransportTypeUnknown TransportType = iota
	TransportTypeTCP
	TransportTypeUDP
	TransportTypeBT
	TransportTypeProxy
)

// DiscoveryType flags how the peer node was discovered; the shaper checks
// for DiscoveryTypeLSA to widen the acceptable-protocol mask.
type DiscoveryType int

const (
	DiscoveryTypeUnknown DiscoveryType = iota
	DiscoveryTypeLSA
	DiscoveryTypeBLE
	DiscoveryTypeCOAP
)

// Protocol is a bitmask of acceptable link-layer protocols.
type Protocol uint32

const (
	ProtocolNIP Protocol = 1 << iota
	ProtocolIP
	ProtocolBR
	ProtocolBLE
	ProtocolAll = ProtocolNIP | ProtocolIP | ProtocolBR | ProtocolBLE
)

// QosKind tags one entry of a SessionParam's QoS vector.
type QosKind int

const (
	QosMinBW QosKind = iota
	QosMaxLatency
	QosMinLatency
	QosRTTLevel
)

// QosItem is one (kind, value) pair of a SessionParam's QoS vector.
type QosItem struct {
	Kind  QosKind
	Value int32
}

// SessionAttr carries the caller's session attributes: the
// preferred-link array (by count) plus the QoS vector.
type SessionAttr struct {
	PreferredLink []LaneLinkType
	Qos           []QosItem
}

// SessionParam is the caller's description of a session-open request.
type SessionParam struct {
	SessionName     string
	PeerSessionName string
	PeerNetworkID   string
	GroupID         string
	Attr            SessionAttr
	SessionID       int32
	IsQosLane       bool
	IsAsync         bool
	FirstTokenID    int64
	Pkg             string
	Uid             int32
	Pid             int32
}

// QosRequirement is the QoS-path allocation requirement record.
type QosRequirement struct {
	MinBW          int32
	MaxLaneLatency int32
	MinLaneLatency int32
	RTTLevel       int32
}

// LaneRequestOption is the legacy-path allocation request shape.
type LaneRequestOption struct {
	PeerNetworkID      string
	Transport          TransportType
	AcceptableProtocols Protocol
	PeerBLEMac         string
	Pid                int32
	NetworkDelegate    bool
	P2POnly            bool
	ExpectedLink       []LaneLinkType
}

// LaneAllocInfo is the QoS-path allocation request shape.
type LaneAllocInfo struct {
	PeerNetworkID      string
	Transport          TransportType
	AcceptableProtocols Protocol
	PeerBLEMac         string
	Pid                int32
	NetworkDelegate    bool
	ExpectedLink       []LaneLinkType
	Qos                QosRequirement
}

// ConnectType tags a ConnectOption's shape, mirroring the channel kinds the
// translator can produce.
type ConnectType int

const (
	ConnectTCP ConnectType = iota
	ConnectP2P
	ConnectHML
	ConnectP2PReuse
	ConnectBR
	ConnectBLE
	ConnectBLEDirect
)

// ConnectOption is the channel opener's input, derived from a LaneConnInfo.
type ConnectOption struct {
	Type ConnectType

	// TCP / P2P-Reuse
	Addr     string
	Port     int
	Protocol Protocol

	// P2P / HML
	PeerIP string

	// BR
	BRMac string

	// BLE / CoC
	BLEMac         string
	DeviceIDHash   string
	ProtoType      int32
	Psm            int32
	FastestConnect bool

	// BLE-Direct / CoC-Direct
	NetworkID string
}

// LaneConnInfo is the result of lane allocation: a tagged union of per-link
// address records, keyed by LinkType.
type LaneConnInfo struct {
	LinkType LaneLinkType

	// WLAN / ETH / P2P-Reuse
	Addr     string
	Port     int
	Protocol Protocol

	// P2P / HML
	PeerIP string

	// BR
	BRMac string

	// BLE / CoC
	BLEMac       string
	DeviceIDHash string
	ProtoType    int32
	Psm          int32

	// BLE-Direct / CoC-Direct
	NetworkID string
}

// ChannelType is the kind of channel the Channel Opener produced.
type ChannelType int

const (
	ChannelTypeUndefined ChannelType = iota
	ChannelTypeTCPDirect
	ChannelTypeRaw
	ChannelTypeProxy
)

// AppInfo is the transient record built from a SessionParam plus its
// first-token id before the Async Channel Driver calls out to
// open_channel_set_module/open_channel/set_channel_info.
type AppInfo struct {
	Pkg            string
	SessionName    string
	SessionID      int32
	Pid            int32
	Uid            int32
	FirstTokenID   int64
	ConnectType    ConnectType
	TransportLink  LaneLinkType
	MyData         []byte
}

// pendingResult is what a Lane Manager callback delivers to a sync entry's
// rendezvous channel.
type pendingResult struct {
	success  bool
	connInfo LaneConnInfo
	errCode  error
}

// pendingEntry is one outstanding request. It lives in exactly one of the
// Controller's two tables (sync xor async), matching spec §3's invariant.
type pendingEntry struct {
	handle   LaneHandle
	isAsync  bool
	finished bool
	success  bool
	connInfo LaneConnInfo
	errCode  error

	// sync only: rendezvous channel, buffered so a callback racing a timed-
	// out waiter never blocks. See rendezvous.go.
	resultCh chan pendingResult

	// async only: deep copy of the caller's SessionParam (see
	// deepCopySessionParam in pending.go) plus the originating caller's
	// access token.
	param        *SessionParam
	firstTokenID int64
}

// PendingTimeout is the default overall budget for a pending sync request
// (spec §6 PENDING_TIMEOUT_MS).
const PendingTimeout = 5000 * time.Millisecond

// LinkTypeCap bounds how many preferred-link entries the shaper will
// translate (spec §4.2 policy 6).
const LinkTypeCap = int(LaneLinkButt)

// IShareMinNameLen is the minimum session-name length for the IShare
// prefix override (spec §4.2 policy 4).
const IShareMinNameLen = 6

// Session-name constants the shaper matches against (spec §6).
const (
	SessionNamePhonepadConnect = "com.huawei.pcassistant.phonepad-connect-channel"
	SessionNameCastPlus        = "CastPlusSessionName"
	SessionNameBoosterdUser    = "com.huawei.boosterd.user"
	SessionNamePrefixIShare    = "IShare"
	SessionNameDistributedData = "distributeddata-default"
	SessionNameSecurityLevel   = "device.security.level"
)
