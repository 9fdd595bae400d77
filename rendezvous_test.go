package softlane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLaneManager is a hand-rolled LaneManager fake. Behavior per handle is
// scripted via the requestFunc/allocFunc hooks so each test controls exactly
// when and how the callback fires.
type fakeLaneManager struct {
	mu      sync.Mutex
	counter uint32

	requestFunc func(handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error
	allocFunc   func(handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error
	freed       []LaneHandle
}

func (f *fakeLaneManager) MintHandle(ctx context.Context) (LaneHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	return LaneHandle(f.counter), nil
}

func (f *fakeLaneManager) RequestLane(ctx context.Context, handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error {
	if f.requestFunc != nil {
		return f.requestFunc(handle, opt, cb)
	}
	return nil
}

func (f *fakeLaneManager) AllocLane(ctx context.Context, handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error {
	if f.allocFunc != nil {
		return f.allocFunc(handle, info, cb)
	}
	return nil
}

func (f *fakeLaneManager) FreeLane(ctx context.Context, handle LaneHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed = append(f.freed, handle)
	return nil
}

func openLedger() *fakePeerLedger { return &fakePeerLedger{authCapacity: 1} }

func TestRequestSync_HappyPathWLAN(t *testing.T) {
	manager := &fakeLaneManager{
		requestFunc: func(handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error {
			go cb.OnSuccess(handle, LaneConnInfo{LinkType: LaneLinkWLAN5G, Addr: "10.0.0.2", Port: 9000, Protocol: ProtocolIP})
			return nil
		},
	}
	ctrl := NewController(WithLaneManager(manager), WithPeerLedger(openLedger()))
	defer ctrl.Deinit()

	opt, err := ctrl.RequestSync(context.Background(), SessionParam{
		SessionName:   "s",
		PeerNetworkID: "N1",
		Attr:          SessionAttr{PreferredLink: []LaneLinkType{0}},
	})

	require.NoError(t, err)
	assert.Equal(t, ConnectTCP, opt.Type)
	assert.Equal(t, "10.0.0.2", opt.Addr)
	assert.Equal(t, 9000, opt.Port)

	// Entry must be gone after a successful round trip.
	_, lookupErr := ctrl.sync.lookupResult(1)
	assert.ErrorIs(t, lookupErr, ErrNotFound)
}

func TestRequestSync_SubmitFailureRemovesEntryAndPropagates(t *testing.T) {
	manager := &fakeLaneManager{
		requestFunc: func(handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error {
			return errors.New("manager rejected")
		},
	}
	ctrl := NewController(WithLaneManager(manager), WithPeerLedger(openLedger()))
	defer ctrl.Deinit()

	_, err := ctrl.RequestSync(context.Background(), SessionParam{SessionName: "s", PeerNetworkID: "N1"})

	assert.ErrorIs(t, err, ErrUpstreamLane)
	_, lookupErr := ctrl.sync.lookupResult(1)
	assert.ErrorIs(t, lookupErr, ErrNotFound)
}

func TestRequestSync_TimeoutRemovesEntryAndLateCallbackIsDropped(t *testing.T) {
	var cb LaneCallback
	manager := &fakeLaneManager{
		requestFunc: func(handle LaneHandle, opt LaneRequestOption, c LaneCallback) error {
			cb = c // never invoked until after the test fires it manually
			return nil
		},
	}
	ctrl := NewController(WithLaneManager(manager), WithPeerLedger(openLedger()), WithPendingTimeout(20*time.Millisecond))
	defer ctrl.Deinit()

	_, err := ctrl.RequestSync(context.Background(), SessionParam{SessionName: "s", PeerNetworkID: "N1"})
	assert.ErrorIs(t, err, ErrTimeout)

	// Spurious late callback for the now-removed handle must not panic and
	// must report NotFound internally (spec §8 scenario 5).
	require.NotNil(t, cb.OnSuccess)
	cb.OnSuccess(1, LaneConnInfo{})
	_, lookupErr := ctrl.sync.lookupResult(1)
	assert.ErrorIs(t, lookupErr, ErrNotFound)
}

func TestRequestSync_FailureCallbackPropagatesReason(t *testing.T) {
	wantErr := errors.New("upstream lane failure")
	manager := &fakeLaneManager{
		requestFunc: func(handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error {
			go cb.OnFail(handle, wantErr)
			return nil
		},
	}
	ctrl := NewController(WithLaneManager(manager), WithPeerLedger(openLedger()))
	defer ctrl.Deinit()

	_, err := ctrl.RequestSync(context.Background(), SessionParam{SessionName: "s", PeerNetworkID: "N1"})

	assert.ErrorIs(t, err, wantErr)
}

// fakeChannelOpener is a hand-rolled ChannelOpener fake whose Open result
// (channel type, error) is scripted per test.
type fakeChannelOpener struct {
	openType ChannelType
	openErr  error
	closed   []int64
}

func (f *fakeChannelOpener) SetModule(ctx context.Context, channelType ChannelType, opt *ConnectOption) error {
	return nil
}

func (f *fakeChannelOpener) Open(ctx context.Context, channelType ChannelType, app AppInfo, opt ConnectOption) (int64, ChannelType, error) {
	if f.openErr != nil {
		return 0, ChannelTypeUndefined, f.openErr
	}
	return 7, f.openType, nil
}

func (f *fakeChannelOpener) Close(ctx context.Context, channelID int64, channelType ChannelType) error {
	f.closed = append(f.closed, channelID)
	return nil
}

type fakeClientIPC struct {
	mu           sync.Mutex
	failedCalls  int
	setInfoCalls int
	lastReason   error
}

func (f *fakeClientIPC) OnChannelOpenFailed(ctx context.Context, sessionID int32, channelType ChannelType, pkg string, pid int32, reason error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedCalls++
	f.lastReason = reason
	return nil
}

func (f *fakeClientIPC) SetChannelInfo(ctx context.Context, pkg, sessionName string, sessionID int32, info ChannelInfo, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setInfoCalls++
	return nil
}

type fakeRegistry struct {
	mu    sync.Mutex
	added []LaneHandle
}

func (f *fakeRegistry) Add(ctx context.Context, channelID int64, channelType ChannelType, connInfo LaneConnInfo, handle LaneHandle, isQosLane bool, myData []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, handle)
	return nil
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRequestAsync_TCPDirectFastPathFreesLaneWithoutRegistering(t *testing.T) {
	manager := &fakeLaneManager{
		allocFunc: func(handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error {
			go cb.OnSuccess(handle, LaneConnInfo{LinkType: LaneLinkWLAN5G, Addr: "10.0.0.2", Port: 9000, Protocol: ProtocolIP})
			return nil
		},
	}
	opener := &fakeChannelOpener{openType: ChannelTypeTCPDirect}
	ipc := &fakeClientIPC{}
	registry := &fakeRegistry{}

	ctrl := NewController(
		WithLaneManager(manager),
		WithPeerLedger(openLedger()),
		WithChannelOpener(opener),
		WithClientIPC(ipc),
		WithLaneResourceRegistry(registry),
	)
	defer ctrl.Deinit()

	err := ctrl.RequestAsync(context.Background(), SessionParam{
		SessionName:   "s",
		PeerNetworkID: "N1",
		IsQosLane:     true,
	}, 99)
	require.NoError(t, err)

	waitForCondition(t, func() bool {
		manager.mu.Lock()
		defer manager.mu.Unlock()
		return len(manager.freed) == 1
	})

	registry.mu.Lock()
	defer registry.mu.Unlock()
	assert.Empty(t, registry.added, "registry must not be called on the TCP-direct fast-path")
}

func TestRequestAsync_P2PSuccessRegistersAndDoesNotFreeLane(t *testing.T) {
	manager := &fakeLaneManager{
		allocFunc: func(handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error {
			go cb.OnSuccess(handle, LaneConnInfo{LinkType: LaneLinkP2P, PeerIP: "192.168.49.1"})
			return nil
		},
	}
	opener := &fakeChannelOpener{openType: ChannelTypeRaw}
	ipc := &fakeClientIPC{}
	registry := &fakeRegistry{}

	ctrl := NewController(
		WithLaneManager(manager),
		WithPeerLedger(openLedger()),
		WithChannelOpener(opener),
		WithClientIPC(ipc),
		WithLaneResourceRegistry(registry),
	)
	defer ctrl.Deinit()

	err := ctrl.RequestAsync(context.Background(), SessionParam{
		SessionName:   "s",
		PeerNetworkID: "N1",
		IsQosLane:     true,
		Attr:          SessionAttr{PreferredLink: []LaneLinkType{2}},
	}, 1)
	require.NoError(t, err)

	waitForCondition(t, func() bool {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		return len(registry.added) == 1
	})

	manager.mu.Lock()
	defer manager.mu.Unlock()
	assert.Empty(t, manager.freed, "registry.Add success means the channel retains the lane")
}

func TestRequestAsync_AllocFailureNotifiesClientExactlyOnceAndRemovesEntry(t *testing.T) {
	reason := errors.New("upstream lane error")
	manager := &fakeLaneManager{
		allocFunc: func(handle LaneHandle, info LaneAllocInfo, cb LaneCallback) error {
			go cb.OnFail(handle, reason)
			return nil
		},
	}
	ipc := &fakeClientIPC{}

	ctrl := NewController(
		WithLaneManager(manager),
		WithPeerLedger(openLedger()),
		WithClientIPC(ipc),
	)
	defer ctrl.Deinit()

	err := ctrl.RequestAsync(context.Background(), SessionParam{SessionName: "s", PeerNetworkID: "N1", IsQosLane: true}, 1)
	require.NoError(t, err)

	waitForCondition(t, func() bool {
		ipc.mu.Lock()
		defer ipc.mu.Unlock()
		return ipc.failedCalls == 1
	})

	_, _, lookupErr := ctrl.async.lookupParam(1)
	assert.ErrorIs(t, lookupErr, ErrNotFound)
}

func TestDeinit_DrainsOutstandingSyncWaiters(t *testing.T) {
	manager := &fakeLaneManager{
		requestFunc: func(handle LaneHandle, opt LaneRequestOption, cb LaneCallback) error {
			return nil // never calls back
		},
	}
	ctrl := NewController(WithLaneManager(manager), WithPeerLedger(openLedger()), WithPendingTimeout(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.RequestSync(context.Background(), SessionParam{SessionName: "s", PeerNetworkID: "N1"})
		done <- err
	}()

	waitForCondition(t, func() bool {
		ctrl.sync.mu.Lock()
		defer ctrl.sync.mu.Unlock()
		return len(ctrl.sync.entries) == 1
	})

	ctrl.Deinit()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("RequestSync did not unblock after Deinit")
	}
}
