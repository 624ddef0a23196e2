// Package auth holds the per-session security context.
//
// It intentionally avoids validation logic; whether a key is still honored
// is the server's call.
package auth

import (
	"crypto/subtle"
	"sync"
)

// Key is the opaque credential the server grants after login.
type Key string

func (k Key) Empty() bool { return len(k) == 0 }

// Equal compares two keys in constant time.
func Equal(a, b Key) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Holder is a thread-safe slot for one session's key. A later Set
// overwrites the previous key; there is no history.
type Holder struct {
	mu  sync.RWMutex
	key Key
	set bool
}

func NewHolder() *Holder {
	return &Holder{}
}

func (h *Holder) Set(k Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.key = k
	h.set = true
}

func (h *Holder) Get() (Key, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.key, h.set
}

// Clear drops the stored key, returning the holder to its unset state.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.key = ""
	h.set = false
}
