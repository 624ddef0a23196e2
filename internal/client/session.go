package client

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/displaylink/internal/auth"
)

var ErrTransportActive = errors.New("client: transport already attached")

// Session is the state of one logical connection: target address, the live
// transport handle, its lifecycle position, and the granted security
// context. A session holds at most one transport for its whole life; the
// handle's lifetime is bounded by the session's.
type Session struct {
	host string
	port int

	state atomic.Int32
	keys  *auth.Holder

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func newSession(host string, port int) *Session {
	return &Session{
		host: host,
		port: port,
		keys: auth.NewHolder(),
	}
}

func (s *Session) Host() string { return s.host }
func (s *Session) Port() int    { return s.port }

func (s *Session) Keys() *auth.Holder { return s.keys }

func (s *Session) State() State {
	return State(s.state.Load())
}

// transition moves from exactly `from` to `to`; it reports whether the
// swap happened.
func (s *Session) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// forceState moves to `to` regardless of the current state, except that
// StateClosed is terminal and never left.
func (s *Session) forceState(to State) {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// attach installs the live transport. A session accepts exactly one.
func (s *Session) attach(conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil || s.closed {
		return ErrTransportActive
	}
	s.conn = conn
	return nil
}

// Conn returns the transport handle, or nil once close has begun.
func (s *Session) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.conn
}

// closeConn tears down the transport. Safe to call repeatedly and with no
// transport attached; the first call wins.
func (s *Session) closeConn() error {
	s.mu.Lock()
	conn := s.conn
	wasClosed := s.closed
	s.closed = true
	s.conn = nil
	s.mu.Unlock()

	if conn == nil || wasClosed {
		return nil
	}
	return conn.Close()
}
