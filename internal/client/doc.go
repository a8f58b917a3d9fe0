// Package client implements the interactive broker console.
//
// Ownership boundary:
// - reading operator lines and mapping them to protocol commands
// - one request/one response exchange per line over a Transport
// - rendering responses, including image and container tables
//
// Connection setup and retry live in protocol/session.
package client
