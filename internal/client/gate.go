package client

import (
	"errors"
	"sync"
	"time"
)

var ErrGateTimeout = errors.New("client: startup gate timeout")

// Gate is the one-shot startup synchronizer. It is released exactly once
// per session, on success or failure alike, and any number of waiters may
// block on it. Release is idempotent; later calls are no-ops.
type Gate struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Release resolves the gate. A nil err means the connection came up; a
// non-nil err is handed to every waiter. Only the first call wins.
func (g *Gate) Release(err error) {
	g.once.Do(func() {
		// err is published before close; waiters read it only after <-done.
		g.err = err
		close(g.done)
	})
}

// Ready exposes the resolution channel for select loops.
func (g *Gate) Ready() <-chan struct{} {
	return g.done
}

// Await blocks until the gate resolves or timeout elapses. A non-positive
// timeout waits indefinitely. The returned error is the connect outcome,
// or ErrGateTimeout.
func (g *Gate) Await(timeout time.Duration) error {
	if timeout <= 0 {
		<-g.done
		return g.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-g.done:
		return g.err
	case <-timer.C:
		return ErrGateTimeout
	}
}
