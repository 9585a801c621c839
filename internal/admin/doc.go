// Package admin implements the HTTP observability server using Echo framework.
//
// Routes: liveness, Prometheus metrics, a JSON stats endpoint, and the
// WebSocket firehose for read-only observers of the message ledger.
package admin
