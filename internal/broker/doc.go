// Package broker owns the server side of the remote container broker.
//
// Ownership boundary:
// - command dispatch from typed requests to the shared Backend
// - per-connection client sessions (greeting, serial dispatch, close)
// - connection acceptor with one goroutine per client
// - bounded graceful shutdown and the optional HTTP status endpoint
//
// Sessions share nothing but the Backend handle and the connection set the
// Service uses for shutdown.
package broker
