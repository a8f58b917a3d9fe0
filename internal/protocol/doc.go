// Package protocol owns the broker wire contract.
//
// Ownership boundary:
// - Command and Response envelope shapes
// - single-line JSON encode/decode
// - payload record shapes carried in Response data
//
// Framing lives in protocol/frame, the command vocabulary and parameter
// contract in protocol/command, and per-connection state in protocol/session.
package protocol
