// Package channeltransport implements a Noise-encrypted, length-framed
// point-to-point channel over a raw TCP socket.
//
// It is the reference transport backing softlane's DefaultChannelOpener for
// the CONNECT_TCP and CONNECT_P2P_REUSE connect-option kinds — the two kinds
// that carry a real (addr, port) pair the opener can dial. It is adapted from
// a connection library that multiplexed this same Conn/Frame/Noise machinery
// over async cloud-storage drivers (blob/queue/table polling for handshake
// and token exchange); here the handshake runs directly over the live socket,
// so the driver/factory abstraction and the async store-and-forward dance are
// gone — two Noise messages exchanged over the TCP stream are enough.
package channeltransport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// MsgTypeData carries application payload.
	MsgTypeData byte = 0x00
	// MsgTypePing is a keep-alive heartbeat.
	MsgTypePing byte = 0x01
	// MsgTypeFin signals a graceful half-close.
	MsgTypeFin byte = 0x02
)

var (
	// ErrHandshakeExchangeFailed is returned when the Noise handshake cannot
	// be completed over the socket.
	ErrHandshakeExchangeFailed = errors.New("channeltransport: handshake exchange failed")
	// ErrNoData reports that no complete frame is buffered yet. No function
	// in this package returns it.
	ErrNoData = errors.New("channeltransport: no data available")
)

// Conn implements net.Conn over a Noise-encrypted, framed TCP socket.
type Conn struct {
	raw   net.Conn
	cfg   *Config
	noise *Noise
	id    string

	ctx    context.Context
	cancel context.CancelFunc

	bufs *Buffers

	readDeadline  atomic.Pointer[time.Time]
	writeDeadline atomic.Pointer[time.Time]

	lastActive   atomic.Int64
	peerLastSeen atomic.Int64

	closeOnce sync.Once
	// wmu guards the write buffer (bufs.Write). Acquired briefly inside flush()
	// to drain the buffer, then released before the raw socket write.
	wmu sync.Mutex
	// rmu guards the read buffer (bufs.Read), readRemain, and the Noise
	// decryption buffer. Never held while calling raw.Read.
	rmu sync.Mutex
	// fmu serializes flush() calls so only one goroutine encrypts and writes
	// at a time. Lock order: fmu -> wmu (never reverse).
	fmu sync.Mutex

	closed      atomic.Uint32
	closedRead  atomic.Uint32
	closedWrite atomic.Uint32

	readRemain int
}

// Buffers holds the scratch buffers a Conn needs for framing and encryption.
type Buffers struct {
	Enc   []byte
	Dec   []byte
	Read  bytes.Buffer
	Write bytes.Buffer
	Raw   bytes.Buffer
}

var buffersPool = sync.Pool{
	New: func() any {
		return &Buffers{
			Enc: make([]byte, 0, 16*1024),
			Dec: make([]byte, 0, 16*1024),
		}
	},
}

// Dial connects to address over TCP and performs a Noise NN handshake as the
// initiator before returning a usable Conn.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	cfg := applyConfig(opts)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, err
	}

	noise, err := NewNoiseClient()
	if err != nil {
		raw.Close()
		return nil, err
	}

	connID := uuid.New().String()
	if err := handshakeInitiator(raw, noise, connID, cfg.handshakeTimeout); err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshakeExchangeFailed, err)
	}

	connCtx, connCancel := context.WithCancel(ctx)
	return newConn(connCtx, connCancel, raw, cfg, noise, connID), nil
}

// DialRetry dials address, retrying with adaptive backoff (see AdaptivePoll)
// until ctx is done. Use this when the peer listener may not be up yet, e.g.
// when racing a responder's startup in an integration test or demo.
func DialRetry(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	cfg := applyConfig(opts)
	poller := NewAdaptivePoll(50*time.Millisecond, cfg.dialTimeout)

	var lastErr error
	for {
		conn, err := Dial(ctx, address, opts...)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial retry: %w (last error: %v)", ctx.Err(), lastErr)
		default:
		}
		poller.Sleep()
	}
}

func newConn(ctx context.Context, cancel context.CancelFunc, raw net.Conn, cfg *Config, noise *Noise, connID string) *Conn {
	now := time.Now()
	c := &Conn{
		raw:   raw,
		cfg:   cfg,
		noise: noise,
		id:    connID,
		ctx:   ctx,
		cancel: cancel,
		bufs:  buffersPool.Get().(*Buffers),
	}
	c.peerLastSeen.Store(now.UnixNano())
	c.lastActive.Store(now.UnixNano())

	if cfg.pingInterval > 0 {
		go c.keepAlive()
	}
	return c
}

// ID returns the connection's handshake-assigned identifier.
func (c *Conn) ID() string { return c.id }

func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.closed.Load() == 1 {
			return 0, net.ErrClosed
		}

		c.rmu.Lock()
		if c.closedRead.Load() == 1 {
			c.rmu.Unlock()
			return 0, io.EOF
		}

		deadline := c.readDeadline.Load()
		if deadline != nil && !deadline.IsZero() && time.Now().After(*deadline) {
			c.rmu.Unlock()
			return 0, os.ErrDeadlineExceeded
		}

		if c.readRemain > 0 {
			n := copy(p, c.bufs.Read.Next(min(c.readRemain, len(p))))
			c.readRemain -= n
			c.rmu.Unlock()
			return n, nil
		}

		if c.bufs.Read.Len() >= FrameHeaderSize {
			header := c.bufs.Read.Bytes()[:FrameHeaderSize]
			fType := header[4]
			fLen := int(binary.BigEndian.Uint32(header[:4]))

			if c.bufs.Read.Len() >= FrameHeaderSize+fLen {
				c.peerLastSeen.Store(time.Now().UnixNano())
				switch fType {
				case MsgTypeData:
					c.bufs.Read.Next(FrameHeaderSize)
					n := copy(p, c.bufs.Read.Next(min(fLen, len(p))))
					c.readRemain = fLen - n
					c.rmu.Unlock()
					return n, nil
				case MsgTypePing:
					c.bufs.Read.Next(FrameHeaderSize + fLen)
					c.rmu.Unlock()
					continue
				case MsgTypeFin:
					c.bufs.Read.Next(FrameHeaderSize + fLen)
					c.closedRead.Store(1)
					c.rmu.Unlock()
					return 0, io.EOF
				default:
					c.bufs.Read.Next(FrameHeaderSize + fLen)
					c.rmu.Unlock()
					continue
				}
			}
		}
		c.rmu.Unlock()

		chunk := make([]byte, 16*1024)
		n, err := c.raw.Read(chunk)
		if n > 0 {
			c.rmu.Lock()
			c.bufs.Raw.Write(chunk[:n])
			for {
				decrypted, rest, derr := c.noise.UnsealData(c.bufs.Dec, c.bufs.Raw.Bytes())
				if derr != nil {
					if derr != io.ErrShortBuffer {
						c.rmu.Unlock()
						return 0, derr
					}
					break
				}
				c.bufs.Dec = decrypted[:0]
				c.bufs.Read.Write(decrypted)
				used := c.bufs.Raw.Len() - len(rest)
				c.bufs.Raw.Next(used)
			}
			c.rmu.Unlock()
		}
		if err != nil {
			if errors.Is(err, context.Canceled) && c.closed.Load() == 1 {
				return 0, net.ErrClosed
			}
			return 0, err
		}
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() == 1 || c.closedWrite.Load() == 1 {
		return 0, io.ErrClosedPipe
	}
	deadline := c.writeDeadline.Load()
	if deadline != nil && !deadline.IsZero() && time.Now().After(*deadline) {
		return 0, os.ErrDeadlineExceeded
	}

	total := len(p)
	c.wmu.Lock()
	BuildFrame(&c.bufs.Write, Frame{Type: MsgTypeData, Payload: p})
	c.wmu.Unlock()

	if err := c.flush(); err != nil {
		return 0, err
	}
	return total, nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(1)
		_ = c.flush()

		if c.closedWrite.Load() == 0 {
			c.wmu.Lock()
			BuildFrame(&c.bufs.Write, Frame{Type: MsgTypeFin})
			c.wmu.Unlock()
		}
		_ = c.flush()

		err = c.raw.Close()
		c.cancel()

		if c.bufs != nil {
			c.bufs.Read.Reset()
			c.bufs.Write.Reset()
			c.bufs.Raw.Reset()
			c.bufs.Enc = c.bufs.Enc[:0]
			c.bufs.Dec = c.bufs.Dec[:0]
			buffersPool.Put(c.bufs)
			c.bufs = nil
		}
	})
	return err
}

// CloseWrite shuts down the writing side, sending a FIN frame to the peer.
func (c *Conn) CloseWrite() error {
	if c.closed.Load() == 1 || c.closedWrite.Swap(1) == 1 {
		return nil
	}
	c.wmu.Lock()
	BuildFrame(&c.bufs.Write, Frame{Type: MsgTypeFin})
	c.wmu.Unlock()
	return c.flush()
}

func (c *Conn) LocalAddr() net.Addr  { return c.raw.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error {
	c.readDeadline.Store(&t)
	c.writeDeadline.Store(&t)
	return nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Store(&t)
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline.Store(&t)
	return nil
}

func (c *Conn) GetMetrics() TransportMetrics { return c.cfg.metrics }

// keepAlive sends a Ping frame whenever the local side has been idle for a
// full pingInterval.
func (c *Conn) keepAlive() {
	ticker := time.NewTicker(c.cfg.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.closed.Load() == 1 || c.closedWrite.Load() == 1 {
				return
			}
			last := c.lastActive.Load()
			if time.Since(time.Unix(0, last)) >= c.cfg.pingInterval {
				c.wmu.Lock()
				BuildFrame(&c.bufs.Write, Frame{Type: MsgTypePing})
				c.wmu.Unlock()
				_ = c.flush()
			}
		}
	}
}

func (c *Conn) flush() error {
	c.fmu.Lock()
	defer c.fmu.Unlock()

	for {
		c.wmu.Lock()
		if c.bufs.Write.Len() == 0 {
			c.wmu.Unlock()
			return nil
		}
		takeLen := min(c.bufs.Write.Len(), 16*1024)
		plaintext := c.bufs.Write.Next(takeLen)
		c.wmu.Unlock()

		sealed, err := c.noise.SealData(c.bufs.Enc, plaintext)
		if err != nil {
			return err
		}
		c.bufs.Enc = sealed[:0]

		if _, err := c.raw.Write(sealed); err != nil {
			return err
		}
		c.lastActive.Store(time.Now().UnixNano())
	}
}

// Listener implements net.Listener, accepting raw TCP connections and
// completing the Noise handshake as the responder before handing back a Conn.
type Listener struct {
	ln  net.Listener
	cfg *Config
}

// Listen starts accepting TCP connections on address.
func Listen(address string, opts ...Option) (*Listener, error) {
	cfg := applyConfig(opts)
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: cfg}, nil
}

func (l *Listener) Accept() (net.Conn, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}

	noise, err := NewNoiseServer()
	if err != nil {
		raw.Close()
		return nil, err
	}

	connID, err := handshakeResponder(raw, noise, l.cfg.handshakeTimeout)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshakeExchangeFailed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return newConn(ctx, cancel, raw, l.cfg, noise, connID), nil
}

func (l *Listener) Close() error   { return l.ln.Close() }
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
