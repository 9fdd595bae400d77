package softlane

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Controller, following channeltransport/options.go's
// functional-options shape.
type Option func(*Config)

// Config holds Controller construction settings. Built via defaultConfig()
// plus a variadic ...Option list, guarding non-positive durations the same
// way channeltransport.Config does.
type Config struct {
	pendingTimeout   time.Duration
	linkTypeCap      int
	iShareMinNameLen int

	logger  zerolog.Logger
	metrics Metrics

	laneManager LaneManager
	peerLedger  PeerLedger
	uidPid      UidPidResolver
	channel     ChannelOpener
	clientIPC   ClientIPC
	registry    LaneResourceRegistry
}

func defaultConfig() *Config {
	return &Config{
		pendingTimeout:   PendingTimeout,
		linkTypeCap:      LinkTypeCap,
		iShareMinNameLen: IShareMinNameLen,
		logger:           zerolog.Nop(),
		metrics:          NewDefaultMetrics(),
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithPendingTimeout overrides the default 5000ms pending-wait budget.
func WithPendingTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.pendingTimeout = d
		}
	}
}

// WithLinkTypeCap overrides the preferred-link translation cap.
func WithLinkTypeCap(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.linkTypeCap = n
		}
	}
}

// WithLogger sets the zerolog logger every component logs through. Defaults
// to zerolog.Nop(), matching the teacher's "no logging unless wired" stance.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithMetrics sets a custom Metrics implementation.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLaneManager wires the Lane Manager collaborator.
func WithLaneManager(lm LaneManager) Option {
	return func(c *Config) { c.laneManager = lm }
}

// WithPeerLedger wires the Peer Ledger collaborator.
func WithPeerLedger(pl PeerLedger) Option {
	return func(c *Config) { c.peerLedger = pl }
}

// WithUidPidResolver wires the uid/pid resolver collaborator.
func WithUidPidResolver(r UidPidResolver) Option {
	return func(c *Config) { c.uidPid = r }
}

// WithChannelOpener wires the channel opener collaborator. Use
// NewDefaultChannelOpener for the CONNECT_TCP/CONNECT_P2P_REUSE reference
// implementation.
func WithChannelOpener(co ChannelOpener) Option {
	return func(c *Config) { c.channel = co }
}

// WithClientIPC wires the client IPC collaborator.
func WithClientIPC(ipc ClientIPC) Option {
	return func(c *Config) { c.clientIPC = ipc }
}

// WithLaneResourceRegistry wires the lane resource registry collaborator.
func WithLaneResourceRegistry(r LaneResourceRegistry) Option {
	return func(c *Config) { c.registry = r }
}
