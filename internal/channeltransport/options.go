package channeltransport

import (
	"errors"
	"time"
)

const (
	// DefaultDialTimeout bounds how long Dial waits for the TCP connect.
	// The Noise exchange that follows is bounded separately by the
	// handshake timeout.
	DefaultDialTimeout = 10 * time.Second
	// DefaultHandshakeTimeout bounds the Noise message exchange once the
	// TCP socket is up.
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultPingInterval is the interval between keep-alive heartbeats.
	// Zero disables keep-alive.
	DefaultPingInterval = 30 * time.Second
	// DefaultIdleTimeout is the grace period after which a connection with
	// no traffic from its peer is to be considered dead. channeltransport
	// stores it in Config but neither reads it nor exposes it: no idle
	// connection is evicted, and there is no accessor for it or for a
	// Conn's last-seen time.
	DefaultIdleTimeout = 5 * time.Minute
)

// ErrInvalidConfig is returned by Validate when option values conflict.
var ErrInvalidConfig = errors.New("channeltransport: invalid config")

// Option defines a functional option for Dial/Listen.
type Option func(*Config)

// Config holds runtime settings for a connection or listener. Zero value is
// never used directly; build one via applyConfig, which seeds defaultConfig
// and then applies options on top.
type Config struct {
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	idleTimeout      time.Duration
	metrics          TransportMetrics
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.dialTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.handshakeTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		dialTimeout:      DefaultDialTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		pingInterval:     DefaultPingInterval,
		idleTimeout:      DefaultIdleTimeout,
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

// WithDialTimeout bounds the TCP dial. The Noise handshake is bounded by
// WithHandshakeTimeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithHandshakeTimeout bounds the Noise message exchange once the TCP
// socket is established.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithPing sets the keep-alive heartbeat cadence. Zero disables keep-alive.
func WithPing(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.pingInterval = d
		}
	}
}

// WithIdleTimeout sets the grace period a caller should treat a silent peer
// as dead. See DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithMetrics sets a custom metrics implementation for tracking connection
// statistics. If not provided, a default implementation with atomic
// counters is used.
func WithMetrics(metrics TransportMetrics) Option {
	return func(c *Config) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}
