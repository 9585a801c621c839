// Package server implements the TCP chat server: the accept loop and the
// per-connection handler state machine.
//
// Each accepted connection gets its own goroutine running handshake then the
// receive/broadcast poll loop against the shared ledger. A connection's
// failure never affects the server or other connections; only an accept-loop
// failure is fatal. Connection admission is guarded by a combined
// global/per-IP/rate limiter.
package server
