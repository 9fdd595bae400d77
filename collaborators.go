package softlane

import "context"

// LaneCallback carries a Lane Manager allocation result: exactly (handle,
// connInfo) on success, or (handle, reason) on failure.
type LaneCallback struct {
	OnSuccess func(handle LaneHandle, connInfo LaneConnInfo)
	OnFail    func(handle LaneHandle, reason error)
}

// LaneManager is the external collaborator that actually picks and
// allocates a lane — link probing and the selection algorithm are entirely
// out of this module's scope (spec §1).
type LaneManager interface {
	MintHandle(ctx context.Context) (LaneHandle, error)
	RequestLane(ctx context.Context, handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error
	AllocLane(ctx context.Context, handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error
	FreeLane(ctx context.Context, handle LaneHandle) error
}

// NodeInfo is the peer-ledger view of a remote device used by the shaper's
// legacy-OS/mesh and discovery-type policies.
type NodeInfo struct {
	NetworkID     string
	Discovery     DiscoveryType
	AuthCapacity  uint32
}

// PeerLedger is the external collaborator that knows about remote devices
// (the soft-bus stack's node/auth ledger).
type PeerLedger interface {
	GetRemoteNode(ctx context.Context, networkID string) (NodeInfo, error)
	HasDiscoveryType(node NodeInfo, kind DiscoveryType) bool
	GetRemoteStr(ctx context.Context, networkID, key string) (string, error)
	GetRemoteNum(ctx context.Context, networkID, key string) (int32, error)
	GetAuthCapacity(ctx context.Context, networkID string) (uint32, error)
}

// UidPidResolver resolves the caller's identity from its session name.
type UidPidResolver interface {
	Lookup(ctx context.Context, sessionName string) (uid, pid int32, err error)
}

// ChannelOpener is the external collaborator that actually opens a channel
// for a given ConnectOption. DefaultChannelOpener (channelopener.go) is the
// one concrete implementation this module ships, for the TCP-shaped
// connect-option kinds only; production BR/BLE/P2P/HML channel opening is
// genuinely hardware-bound and supplied by the integrator.
type ChannelOpener interface {
	SetModule(ctx context.Context, channelType ChannelType, opt *ConnectOption) error
	Open(ctx context.Context, channelType ChannelType, app AppInfo, opt ConnectOption) (channelID int64, actualType ChannelType, err error)
	Close(ctx context.Context, channelID int64, channelType ChannelType) error
}

// ChannelInfo is what the Async Channel Driver hands to ClientIPC.SetChannelInfo
// once a channel has been opened.
type ChannelInfo struct {
	ChannelID   int64
	ChannelType ChannelType
	ConnInfo    LaneConnInfo
}

// ClientIPC is the external collaborator that notifies the requesting
// application process of channel-open results.
type ClientIPC interface {
	OnChannelOpenFailed(ctx context.Context, sessionID int32, channelType ChannelType, pkg string, pid int32, reason error) error
	SetChannelInfo(ctx context.Context, pkg, sessionName string, sessionID int32, info ChannelInfo, pid int32) error
}

// LaneResourceRegistry binds an opened channel to the lane handle that
// produced it, for channels that do retain the lane (anything other than
// the TCP-direct fast-path; see channeldriver.go).
type LaneResourceRegistry interface {
	Add(ctx context.Context, channelID int64, channelType ChannelType, connInfo LaneConnInfo, handle LaneHandle, isQosLane bool, myData []byte) error
}
