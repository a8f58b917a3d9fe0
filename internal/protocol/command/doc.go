// Package command owns the broker command vocabulary.
//
// Ownership boundary:
// - required-parameter contract per command type
// - validation failures with client-facing messages
// - typed request variants parsed from, and encoded back to, wire commands
package command
