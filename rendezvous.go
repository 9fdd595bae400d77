package softlane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Controller is the Lane Pending Controller: it glues the Pending Table to
// the Lane Manager for both the synchronous and asynchronous request
// protocols (spec §4.4), and drives the Async Channel Driver (§4.5) on
// successful async allocation.
type Controller struct {
	cfg *Config

	sync  *pendingTable
	async *pendingTable

	closeOnce sync.Once
	closed    chan struct{}
}

// NewController builds a Controller from options. Call Deinit when done.
func NewController(opts ...Option) *Controller {
	return &Controller{
		cfg:    applyConfig(opts),
		sync:   newPendingTable(false),
		async:  newPendingTable(true),
		closed: make(chan struct{}),
	}
}

// Deinit drains both pending tables, delivering ErrShutdown to every
// outstanding sync waiter so it unblocks instead of hanging until timeout
// (spec §9 "Global tables").
func (c *Controller) Deinit() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.sync.drain()
		c.async.drain()
	})
}

func (c *Controller) logger() *zerolog.Logger { return &c.cfg.logger }

// RequestSync implements spec §4.4.1: shape the request, mint a handle,
// submit to the Lane Manager, block on the entry's rendezvous channel up to
// the configured pending timeout, and return the resulting ConnectOption.
func (c *Controller) RequestSync(ctx context.Context, param SessionParam) (ConnectOption, error) {
	select {
	case <-c.closed:
		return ConnectOption{}, ErrClosed
	default:
	}

	shaped, err := c.shape(ctx, param)
	if err != nil {
		return ConnectOption{}, err
	}

	handle, err := c.cfg.laneManager.MintHandle(ctx)
	if err != nil {
		return ConnectOption{}, fmt.Errorf("%w: %v", ErrUpstreamLane, err)
	}

	entry, err := c.sync.add(handle)
	if err != nil {
		return ConnectOption{}, err
	}

	cb := LaneCallback{
		OnSuccess: func(h LaneHandle, connInfo LaneConnInfo) {
			_ = c.sync.update(h, true, connInfo, nil)
		},
		OnFail: func(h LaneHandle, reason error) {
			_ = c.sync.update(h, false, LaneConnInfo{}, reason)
		},
	}

	if shaped.IsQosLane {
		err = c.cfg.laneManager.AllocLane(ctx, handle, shaped.Alloc, cb)
	} else {
		err = c.cfg.laneManager.RequestLane(ctx, handle, shaped.Request, cb)
	}
	if err != nil {
		c.sync.remove(handle)
		return ConnectOption{}, fmt.Errorf("%w: %v", ErrUpstreamLane, err)
	}

	select {
	case result := <-entry.resultCh:
		c.sync.remove(handle)
		if !result.success {
			if result.errCode != nil {
				return ConnectOption{}, result.errCode
			}
			return ConnectOption{}, ErrUpstreamLane
		}
		return translateConnectOption(result.connInfo)
	case <-time.After(c.cfg.pendingTimeout):
		c.sync.remove(handle)
		c.cfg.metrics.IncrementSyncTimeout()
		return ConnectOption{}, ErrTimeout
	case <-ctx.Done():
		c.sync.remove(handle)
		return ConnectOption{}, ctx.Err()
	case <-c.closed:
		c.sync.remove(handle)
		return ConnectOption{}, ErrShutdown
	}
}

// RequestAsync implements spec §4.4.2: shape the request, mint a handle,
// insert a deep-copied async entry, submit to the Lane Manager, and return
// immediately. The caller is notified later via ClientIPC.
func (c *Controller) RequestAsync(ctx context.Context, param SessionParam, firstTokenID int64) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	shaped, err := c.shape(ctx, param)
	if err != nil {
		return err
	}

	handle, err := c.cfg.laneManager.MintHandle(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamLane, err)
	}

	// The deep-copied entry carries the post-shaping is_qos_lane decision
	// (it may have been forced false by the legacy-OS/mesh override), since
	// that is what the channel driver's registry.add call must report.
	storedParam := param
	storedParam.IsQosLane = shaped.IsQosLane
	if _, err := c.async.addAsync(handle, storedParam, firstTokenID); err != nil {
		return err
	}

	cb := LaneCallback{
		OnSuccess: func(h LaneHandle, connInfo LaneConnInfo) {
			c.onAllocSuccess(context.Background(), h, connInfo)
		},
		OnFail: func(h LaneHandle, reason error) {
			c.onAllocFail(context.Background(), h, reason)
		},
	}

	if shaped.IsQosLane {
		err = c.cfg.laneManager.AllocLane(ctx, handle, shaped.Alloc, cb)
	} else {
		err = c.cfg.laneManager.RequestLane(ctx, handle, shaped.Request, cb)
	}
	if err != nil {
		c.async.remove(handle)
		return fmt.Errorf("%w: %v", ErrUpstreamLane, err)
	}
	return nil
}

// onAllocSuccess is the async success callback (spec §4.4.2): look up the
// entry's deep-copied param, build an AppInfo, drive the Async Channel
// Driver, then remove the entry.
func (c *Controller) onAllocSuccess(ctx context.Context, handle LaneHandle, connInfo LaneConnInfo) {
	param, firstTokenID, err := c.async.lookupParam(handle)
	if err != nil {
		c.logger().Warn().Uint32("handle", uint32(handle)).Msg("async alloc success for unknown handle, dropped")
		return
	}

	app := buildAppInfo(*param, firstTokenID)
	c.runAsyncChannelDriver(ctx, handle, *param, app, connInfo)
	c.async.remove(handle)
}

// onAllocFail is the async failure callback (spec §4.4.2).
func (c *Controller) onAllocFail(ctx context.Context, handle LaneHandle, reason error) {
	param, firstTokenID, err := c.async.lookupParam(handle)
	if err != nil {
		c.async.remove(handle)
		return
	}

	app := buildAppInfo(*param, firstTokenID)
	if c.cfg.clientIPC != nil {
		_ = c.cfg.clientIPC.OnChannelOpenFailed(ctx, app.SessionID, ChannelTypeUndefined, app.Pkg, app.Pid, reason)
	}
	c.async.remove(handle)
}

func buildAppInfo(param SessionParam, firstTokenID int64) AppInfo {
	return AppInfo{
		Pkg:          param.Pkg,
		SessionName:  param.SessionName,
		SessionID:    param.SessionID,
		Pid:          param.Pid,
		Uid:          param.Uid,
		FirstTokenID: firstTokenID,
	}
}
