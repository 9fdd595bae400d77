package softlane

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/atsika/softlane/internal/channeltransport"
)

// DefaultChannelOpener is the one concrete ChannelOpener this module ships.
// It dials channeltransport (Noise-over-TCP) for the two connect-option
// kinds that carry a real (addr, port) pair — CONNECT_TCP and
// CONNECT_P2P_REUSE — and returns ErrUnsupportedLink for everything else,
// consistent with spec §1's "Out of scope: the actual channel-open
// implementation" for hardware-bound links.
type DefaultChannelOpener struct {
	opts []channeltransport.Option

	mu      sync.Mutex
	conns   map[int64]*channeltransport.Conn
	nextID  int64
}

// NewDefaultChannelOpener builds a DefaultChannelOpener. opts are forwarded
// to every channeltransport.Dial call.
func NewDefaultChannelOpener(opts ...channeltransport.Option) *DefaultChannelOpener {
	return &DefaultChannelOpener{
		opts:  opts,
		conns: make(map[int64]*channeltransport.Conn),
	}
}

// SetModule is a no-op for this reference implementation: channeltransport
// has no module-routing concept of its own to prime before Open.
func (o *DefaultChannelOpener) SetModule(ctx context.Context, channelType ChannelType, opt *ConnectOption) error {
	return nil
}

// Open dials the peer named by opt and returns a channel id the caller can
// later Close. The returned ChannelType always echoes the caller's request
// since this opener never substitutes a different channel kind.
func (o *DefaultChannelOpener) Open(ctx context.Context, channelType ChannelType, app AppInfo, opt ConnectOption) (int64, ChannelType, error) {
	var addr string
	switch opt.Type {
	case ConnectTCP, ConnectP2PReuse:
		addr = net.JoinHostPort(opt.Addr, fmt.Sprintf("%d", opt.Port))
	default:
		return 0, ChannelTypeUndefined, fmt.Errorf("%w: connect type %v", ErrUnsupportedLink, opt.Type)
	}

	conn, err := channeltransport.Dial(ctx, addr, o.opts...)
	if err != nil {
		return 0, ChannelTypeUndefined, fmt.Errorf("%w: %v", ErrChannelOpen, err)
	}

	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.conns[id] = conn
	o.mu.Unlock()

	return id, channelType, nil
}

// Close closes and forgets the channel identified by channelID.
func (o *DefaultChannelOpener) Close(ctx context.Context, channelID int64, channelType ChannelType) error {
	o.mu.Lock()
	conn, ok := o.conns[channelID]
	delete(o.conns, channelID)
	o.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return conn.Close()
}

// Conn returns the live transport connection for channelID, for callers
// that want to read/write application data over the opened channel.
// Returns nil if channelID is unknown or already closed.
func (o *DefaultChannelOpener) Conn(channelID int64) *channeltransport.Conn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conns[channelID]
}
