package softlane

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAsyncChannelDriver_TranslateFailureNotifiesAndFreesLane(t *testing.T) {
	manager := &fakeLaneManager{}
	ipc := &fakeClientIPC{}
	ctrl := NewController(
		WithLaneManager(manager),
		WithClientIPC(ipc),
	)
	defer ctrl.Deinit()

	ctrl.runAsyncChannelDriver(context.Background(), LaneHandle(5), SessionParam{SessionID: 1, Pkg: "pkg"}, AppInfo{SessionID: 1, Pkg: "pkg"}, LaneConnInfo{LinkType: LaneLinkButt})

	require.Len(t, manager.freed, 1)
	assert.Equal(t, LaneHandle(5), manager.freed[0])
	assert.Equal(t, 1, ipc.failedCalls)
	assert.ErrorIs(t, ipc.lastReason, ErrInvalidLinkKind)
}

func TestRunAsyncChannelDriver_OpenFailureClosesNothingAndFreesLane(t *testing.T) {
	manager := &fakeLaneManager{}
	ipc := &fakeClientIPC{}
	opener := &fakeChannelOpener{openErr: errors.New("dial refused")}
	ctrl := NewController(
		WithLaneManager(manager),
		WithClientIPC(ipc),
		WithChannelOpener(opener),
	)
	defer ctrl.Deinit()

	connInfo := LaneConnInfo{LinkType: LaneLinkWLAN5G, Addr: "10.0.0.2", Port: 9000, Protocol: ProtocolIP}
	ctrl.runAsyncChannelDriver(context.Background(), LaneHandle(6), SessionParam{}, AppInfo{}, connInfo)

	assert.Empty(t, opener.closed)
	require.Len(t, manager.freed, 1)
	assert.Equal(t, 1, ipc.failedCalls)
	assert.ErrorIs(t, ipc.lastReason, ErrChannelOpen)
}

func TestRunAsyncChannelDriver_SetChannelInfoFailureClosesChannelAndFreesLane(t *testing.T) {
	manager := &fakeLaneManager{}
	ipc := &failingSetInfoIPC{}
	opener := &fakeChannelOpener{openType: ChannelTypeRaw}
	ctrl := NewController(
		WithLaneManager(manager),
		WithClientIPC(ipc),
		WithChannelOpener(opener),
	)
	defer ctrl.Deinit()

	connInfo := LaneConnInfo{LinkType: LaneLinkP2P, PeerIP: "192.168.49.1"}
	ctrl.runAsyncChannelDriver(context.Background(), LaneHandle(7), SessionParam{}, AppInfo{}, connInfo)

	require.Len(t, manager.freed, 1)
	require.Len(t, opener.closed, 1)
	assert.Equal(t, int64(7), opener.closed[0])
}

func TestRunAsyncChannelDriver_RegistryRejectionClosesChannelAndFreesLane(t *testing.T) {
	manager := &fakeLaneManager{}
	ipc := &fakeClientIPC{}
	opener := &fakeChannelOpener{openType: ChannelTypeRaw}
	registry := &rejectingRegistry{}
	ctrl := NewController(
		WithLaneManager(manager),
		WithClientIPC(ipc),
		WithChannelOpener(opener),
		WithLaneResourceRegistry(registry),
	)
	defer ctrl.Deinit()

	connInfo := LaneConnInfo{LinkType: LaneLinkP2P, PeerIP: "192.168.49.1"}
	ctrl.runAsyncChannelDriver(context.Background(), LaneHandle(8), SessionParam{}, AppInfo{}, connInfo)

	require.Len(t, manager.freed, 1)
	require.Len(t, opener.closed, 1)
}

func TestInferChannelType(t *testing.T) {
	assert.Equal(t, ChannelTypeTCPDirect, inferChannelType(ConnectOption{Type: ConnectTCP}))
	assert.Equal(t, ChannelTypeTCPDirect, inferChannelType(ConnectOption{Type: ConnectP2PReuse}))
	assert.Equal(t, ChannelTypeRaw, inferChannelType(ConnectOption{Type: ConnectP2P}))
	assert.Equal(t, ChannelTypeRaw, inferChannelType(ConnectOption{Type: ConnectBLE}))
}

type failingSetInfoIPC struct{ fakeClientIPC }

func (f *failingSetInfoIPC) SetChannelInfo(ctx context.Context, pkg, sessionName string, sessionID int32, info ChannelInfo, pid int32) error {
	return errors.New("ipc unavailable")
}

type rejectingRegistry struct{}

func (rejectingRegistry) Add(ctx context.Context, channelID int64, channelType ChannelType, connInfo LaneConnInfo, handle LaneHandle, isQosLane bool, myData []byte) error {
	return errors.New("registry full")
}
