package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/displaylink/internal/auth"
	"github.com/danmuck/displaylink/internal/observability"
	"github.com/danmuck/displaylink/internal/protocol/frame"
	"github.com/danmuck/displaylink/internal/protocol/packet"
	"github.com/danmuck/displaylink/internal/protocol/schema"
)

var (
	ErrConnectFailed  = errors.New("client: connect failed")
	ErrConnectionLost = errors.New("client: connection lost")
	ErrSessionClosed  = errors.New("client: session closed")
	ErrAlreadyStarted = errors.New("client: session already started")
)

// DispatchFunc receives every decoded inbound packet, on the read-loop
// goroutine. Slow handlers stall the read loop; hand off if that matters.
type DispatchFunc func(packet.Packet)

// NotifyFunc observes lifecycle transitions. err is non-nil when the
// transition was caused by a failure.
type NotifyFunc func(state State, err error)

type Option func(*Client)

func WithDispatch(fn DispatchFunc) Option {
	return func(c *Client) { c.dispatch = fn }
}

func WithNotify(fn NotifyFunc) Option {
	return func(c *Client) { c.notify = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client manages one session to the display server. It is single-use:
// Run connects and blocks until the session ends, and a closed client
// stays closed.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	dispatch DispatchFunc
	notify   NotifyFunc

	sess *Session
	gate *Gate

	writeMu sync.Mutex
	seq     atomic.Uint64
	closing atomic.Bool

	done chan struct{}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:  cfg,
		log:  zerolog.Nop(),
		sess: newSession(cfg.Host, cfg.Port),
		gate: NewGate(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("addr", cfg.Address()).Logger()
	return c, nil
}

// Run dials the server and services the connection until it ends. It
// blocks its caller for the session's full lifetime; run it on a dedicated
// goroutine. The startup gate resolves as soon as the connect attempt
// does, successful or not. Cancelling ctx closes the transport.
func (c *Client) Run(ctx context.Context) error {
	if !c.sess.transition(StateIdle, StateConnecting) {
		return ErrAlreadyStarted
	}
	defer close(c.done)
	c.notifyState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrConnectFailed, err)
		c.sess.forceState(StateClosed)
		c.gate.Release(err)
		c.notifyState(StateClosed, err)
		observability.RecordConnectAttempt("failure")
		c.log.Error().Err(err).Msg("connect failed")
		return err
	}
	if err := c.sess.attach(conn); err != nil {
		_ = conn.Close()
		c.sess.forceState(StateClosed)
		c.gate.Release(err)
		c.notifyState(StateClosed, err)
		return err
	}

	start := time.Now()
	c.sess.transition(StateConnecting, StateConnected)
	observability.RecordConnectAttempt("success")
	c.gate.Release(nil)
	c.notifyState(StateConnected, nil)
	c.log.Info().Msg("connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.closing.Store(true)
			c.sess.forceState(StateClosing)
			_ = c.sess.closeConn()
		case <-stop:
		}
	}()

	err = c.readLoop(conn)
	observability.ObserveSessionDuration(time.Since(start))
	c.sess.forceState(StateClosed)

	// A locally initiated close is a clean end; a protocol violation is
	// terminal even when shutdown already began.
	if errors.Is(err, frame.ErrProtocolViolation) {
		c.notifyState(StateClosed, err)
		c.log.Error().Err(err).Msg("session closed on protocol violation")
		return err
	}
	if c.closing.Load() {
		c.notifyState(StateClosed, nil)
		c.log.Info().Msg("session closed")
		return nil
	}
	c.notifyState(StateClosed, err)
	c.log.Warn().Err(err).Msg("session lost")
	return err
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   c.cfg.ConnectTimeout,
		KeepAlive: c.cfg.KeepAlivePeriod,
	}
	raw, err := dialer.DialContext(ctx, "tcp", c.cfg.Address())
	if err != nil {
		return nil, err
	}
	if !c.cfg.TLS.Enabled {
		return raw, nil
	}

	tlsCfg, err := tlsClientConfig(c.cfg)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	conn := tls.Client(raw, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) readLoop(conn net.Conn) error {
	dec := frame.NewDecoder(c.cfg.Limits)
	buf := make([]byte, c.cfg.ReadBufferBytes)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			if derr := c.drain(dec); derr != nil {
				c.closing.Store(true)
				c.sess.forceState(StateClosing)
				_ = c.sess.closeConn()
				observability.RecordProtocolViolation()
				return derr
			}
		}
		if err != nil {
			_ = c.sess.closeConn()
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: server closed connection", ErrConnectionLost)
			}
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
}

// drain decodes every complete frame currently buffered. A violation stops
// the loop before the offending frame reaches dispatch.
func (c *Client) drain(dec *frame.Decoder) error {
	for {
		f, err := dec.Next()
		if errors.Is(err, frame.ErrIncomplete) {
			return nil
		}
		if err != nil {
			return err
		}
		p, err := packet.Decode(f)
		if err != nil {
			return err
		}

		name := schema.Name(f.Header.Type)
		size := frame.HeaderLen + len(f.Auth) + len(f.Payload)
		observability.RecordFrameReceived(name, size)
		c.log.Debug().Str("packet", name).Uint64("seq", f.Header.Seq).Msg("received")

		if grant, ok := p.(packet.AuthGrant); ok {
			c.storeKey(auth.Key(grant.Key))
		}
		if c.dispatch != nil {
			c.dispatch(p)
		}
	}
}

func (c *Client) storeKey(key auth.Key) {
	prev, had := c.sess.Keys().Get()
	c.sess.Keys().Set(key)
	switch {
	case !had:
		c.log.Info().Msg("session key granted")
	case !auth.Equal(prev, key):
		c.log.Info().Msg("session key rotated")
	}
}

// Send serializes p and writes it as one frame, returning after the write
// has been handed to the transport. Concurrent callers are serialized; a
// session past close-begin fails fast.
func (c *Client) Send(p packet.Packet) error {
	if c.closing.Load() {
		return ErrSessionClosed
	}
	if c.sess.State() != StateConnected {
		return ErrSessionClosed
	}
	return c.write(p)
}

func (c *Client) write(p packet.Packet) error {
	var authBlock []byte
	if schema.RequiresAuth(p.Type()) {
		if key, ok := c.sess.Keys().Get(); ok {
			authBlock = []byte(key)
		}
	}
	buf, err := packet.Encode(c.seq.Add(1), p, authBlock, c.cfg.Limits)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn := c.sess.Conn()
	if conn == nil {
		return ErrSessionClosed
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("client: write %s: %w", schema.Name(p.Type()), err)
	}
	observability.RecordFrameSent(schema.Name(p.Type()), len(buf))
	return nil
}

// Disconnect shuts the session down in two phases: send a goodbye notice,
// then close the transport. A failed notice (broken transport) does not
// stop the close. Disconnect never blocks past the notice write and is
// safe to call at any point, repeatedly.
func (c *Client) Disconnect() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	wasConnected := c.sess.State() == StateConnected
	c.sess.forceState(StateClosing)
	c.notifyState(StateClosing, nil)

	if wasConnected {
		if err := c.write(packet.Goodbye{Reason: "client disconnect"}); err != nil {
			c.log.Warn().Err(err).Msg("goodbye notice failed")
		}
	}
	if err := c.sess.closeConn(); err != nil {
		c.log.Warn().Err(err).Msg("transport close failed")
	}
	return nil
}

// AwaitReady blocks until the connect attempt resolves or timeout elapses.
// A nil return means the session reached StateConnected.
func (c *Client) AwaitReady(timeout time.Duration) error {
	return c.gate.Await(timeout)
}

// Done resolves when Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) State() State {
	return c.sess.State()
}

// Key returns the granted session key, if the server has issued one.
func (c *Client) Key() (auth.Key, bool) {
	return c.sess.Keys().Get()
}

func (c *Client) notifyState(state State, err error) {
	if c.notify != nil {
		c.notify(state, err)
	}
}
