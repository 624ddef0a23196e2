// Package client owns the display-server session: one persistent TCP
// connection, the framed packet codec on top of it, and the handshakes
// around its lifetime.
//
// Ownership boundary:
// - connect/read-loop/disconnect lifecycle (Run, Disconnect)
// - serialized outbound write path (Send)
// - startup gate for callers waiting on connection resolution
// - per-session security context (granted key, outbound auth blocks)
//
// The package never retries a failed or dropped connection. A Client is
// single-use; reconnecting means building a fresh Client, typically around
// NextBackoffDelay.
package client
