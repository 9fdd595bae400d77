package softlane

import (
	"context"
	"fmt"
)

// runAsyncChannelDriver implements spec §4.5: translate conn info, open a
// channel via the external Channel Opener, push channel identity back to
// the client via IPC, and on success register the channel↔lane binding;
// on any failure, report to the client and free the lane. Grounded on the
// original source's TransAsyncOpenChannelProc, including its EXIT_ERR
// cleanup label (cleanupOnError below) and the TCP-direct fast-path that
// frees the lane instead of registering it.
func (c *Controller) runAsyncChannelDriver(ctx context.Context, handle LaneHandle, param SessionParam, app AppInfo, connInfo LaneConnInfo) {
	// Step 1: translate.
	connectOpt, err := translateConnectOption(connInfo)
	if err != nil {
		c.cfg.metrics.IncrementOpenChannelFail()
		c.notifyChannelOpenFailed(ctx, app, err)
		c.cleanupOnError(ctx, handle)
		return
	}

	// Step 2: fill connect type / transport link onto the AppInfo.
	app.ConnectType = connectOpt.Type
	app.TransportLink = connInfo.LinkType

	// Step 3: fill_app_info is folded into buildAppInfo (rendezvous.go) plus
	// the two field assignments above; there is no further external
	// channel_info record to populate in this port.
	channelType := inferChannelType(connectOpt)

	// Step 4: open_channel_set_module.
	if c.cfg.channel != nil {
		if err := c.cfg.channel.SetModule(ctx, channelType, &connectOpt); err != nil {
			c.cfg.metrics.IncrementOpenChannelFail()
			c.notifyChannelOpenFailed(ctx, app, fmt.Errorf("%w: %v", ErrChannelOpen, err))
			c.cleanupOnError(ctx, handle)
			return
		}
	}

	// Step 5: open_channel.
	if c.cfg.channel == nil {
		c.cfg.metrics.IncrementOpenChannelFail()
		c.notifyChannelOpenFailed(ctx, app, ErrChannelOpen)
		c.cleanupOnError(ctx, handle)
		return
	}
	channelID, actualType, err := c.cfg.channel.Open(ctx, channelType, app, connectOpt)
	if err != nil {
		c.cfg.metrics.IncrementOpenChannelFail()
		c.notifyChannelOpenFailed(ctx, app, fmt.Errorf("%w: %v", ErrChannelOpen, err))
		c.cleanupOnError(ctx, handle)
		return
	}

	// Step 6: client_ipc.set_channel_info.
	info := ChannelInfo{ChannelID: channelID, ChannelType: actualType, ConnInfo: connInfo}
	if c.cfg.clientIPC != nil {
		if err := c.cfg.clientIPC.SetChannelInfo(ctx, app.Pkg, app.SessionName, app.SessionID, info, app.Pid); err != nil {
			c.cfg.metrics.IncrementOpenChannelFail()
			c.notifyChannelOpenFailed(ctx, app, fmt.Errorf("%w: %v", ErrChannelOpen, err))
			if c.cfg.channel != nil {
				_ = c.cfg.channel.Close(ctx, channelID, actualType)
			}
			c.cleanupOnError(ctx, handle)
			return
		}
	}

	c.cfg.metrics.IncrementOpenChannelSuccess()

	// Step 7: post-success path selection.
	if actualType == ChannelTypeTCPDirect && connectOpt.Type != ConnectP2P {
		c.freeLane(ctx, handle)
		return
	}

	if c.cfg.registry != nil {
		if err := c.cfg.registry.Add(ctx, channelID, actualType, connInfo, handle, param.IsQosLane, app.MyData); err != nil {
			c.cfg.metrics.IncrementRegistryReject()
			c.notifyChannelOpenFailed(ctx, app, fmt.Errorf("%w: %v", ErrRegistry, err))
			if c.cfg.channel != nil {
				_ = c.cfg.channel.Close(ctx, channelID, actualType)
			}
			c.cleanupOnError(ctx, handle)
			return
		}
	}
}

// inferChannelType picks the channel kind the opener is asked to produce
// from the translated ConnectOption's shape. TCP-shaped options request a
// direct TCP channel; every other shape requests a raw channel, since this
// module's own ChannelOpener reference implementation only ever backs TCP,
// and production BR/BLE/P2P openers decide their own channel kind.
func inferChannelType(opt ConnectOption) ChannelType {
	switch opt.Type {
	case ConnectTCP, ConnectP2PReuse:
		return ChannelTypeTCPDirect
	default:
		return ChannelTypeRaw
	}
}

func (c *Controller) notifyChannelOpenFailed(ctx context.Context, app AppInfo, reason error) {
	if c.cfg.clientIPC == nil {
		return
	}
	_ = c.cfg.clientIPC.OnChannelOpenFailed(ctx, app.SessionID, ChannelTypeUndefined, app.Pkg, app.Pid, reason)
}

// cleanupOnError is the EXIT_ERR label: report the open-channel-end event
// (folded into the metrics increments at each call site above) and, if the
// lane handle is non-zero, free it via the Lane Manager.
func (c *Controller) cleanupOnError(ctx context.Context, handle LaneHandle) {
	if handle != 0 {
		c.freeLane(ctx, handle)
	}
}

func (c *Controller) freeLane(ctx context.Context, handle LaneHandle) {
	if c.cfg.laneManager == nil {
		return
	}
	if err := c.cfg.laneManager.FreeLane(ctx, handle); err == nil {
		c.cfg.metrics.IncrementLaneFreed()
	}
}
