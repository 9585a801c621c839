package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatroom/internal/errors"
	"github.com/pscheid92/chatroom/internal/protocol"
)

// Client connects to the chat server, performs the handshake, and then
// alternates between sending generated notes and draining replies.
type Client struct {
	addr     string
	name     string
	interval time.Duration
	clock    clockwork.Clock
	sink     func(string)
}

// New creates a client. Every received line is passed to sink.
func New(addr, name string, interval time.Duration, clock clockwork.Clock, sink func(string)) *Client {
	return &Client{
		addr:     addr,
		name:     name,
		interval: interval,
		clock:    clock,
		sink:     sink,
	}
}

// Run connects and drives the send/receive loop until ctx is cancelled or the
// connection fails. Cancellation is a clean stop, not an error.
func (c *Client) Run(ctx context.Context) error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return errors.CommunicationError("communication error on client side", err)
	}

	lc := protocol.NewLineConn(conn)
	defer func() { _ = lc.Close() }()

	// unblock pending reads when ctx ends
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = lc.Close()
		case <-stopped:
		}
	}()

	// handshake: the greeting is mandatory, so block for it
	if err := c.communicateAtLeast(lc, c.name, 1); err != nil {
		return c.runError(ctx, err)
	}

	timer := c.clock.NewTimer(c.interval)
	defer timer.Stop()

	for count := 0; ; count++ {
		if err := c.communicate(lc, c.composeNote(count)); err != nil {
			return c.runError(ctx, err)
		}

		timer.Reset(c.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
		}
	}
}

func (c *Client) composeNote(count int) string {
	return fmt.Sprintf("message %d of %s", count, c.name)
}

// communicateAtLeast sends one line and blocks until atLeast replies arrived.
func (c *Client) communicateAtLeast(lc *protocol.LineConn, message string, atLeast int) error {
	if err := lc.Send(message); err != nil {
		return err
	}
	replies, err := lc.ReceiveAtLeast(atLeast)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		c.sink(reply)
	}
	return nil
}

// communicate sends one line and drains whatever replies are buffered.
func (c *Client) communicate(lc *protocol.LineConn, message string) error {
	if err := lc.Send(message); err != nil {
		return err
	}
	replies, err := lc.ReceiveAvailable()
	for _, reply := range replies {
		c.sink(reply)
	}
	return err
}

// runError suppresses I/O errors caused by our own ctx-driven close.
func (c *Client) runError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
