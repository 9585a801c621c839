// Package client implements the chat client loop: connect, hand over the
// author name, then periodically send a generated note and hand replies to a
// sink. Used by cmd/client and by the end-to-end tests.
package client
