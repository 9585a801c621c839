// Package chat implements the broadcast engine's core: the time-ordered
// message ledger shared by all connections.
//
// Messages are immutable and identified by their (stamp, author) key. The
// Ledger is the only shared state in the process; it synchronizes internally
// so connection handlers can insert and scan concurrently without locking.
package chat
