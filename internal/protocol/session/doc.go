// Package session owns per-connection broker session transport.
//
// Ownership boundary:
// - GREETING/READY/DISPATCHING/CLOSED state machine
// - line-framed envelope conn with read/write deadlines
// - client dialer with bounded retry/backoff and one outstanding request
package session
