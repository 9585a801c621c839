// Package protocol implements the line-oriented wire primitives shared by the
// server's connection handlers and the client.
//
// A LineConn owns a reader goroutine that feeds complete lines into a buffered
// channel. ReceiveAvailable drains that channel without blocking (poll, don't
// block), while ReceiveAtLeast blocks until the requested number of lines has
// arrived and treats stream end before that as a communication error.
package protocol
