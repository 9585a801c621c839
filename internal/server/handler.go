package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/errors"
	"github.com/pscheid92/chatroom/internal/metrics"
	"github.com/pscheid92/chatroom/internal/protocol"
)

const greeting = "Hi, %s!"

// handler runs one connection's state machine: handshake, then the
// receive/broadcast poll loop, until the server shuts down or the connection
// errors. The cursor marks "delivered up to here, exclusive" and only the
// owning handler mutates it.
type handler struct {
	id           uuid.UUID
	conn         *protocol.LineConn
	ledger       *chat.Ledger
	clock        clockwork.Clock
	pollInterval time.Duration
	done         <-chan struct{}
	author       string
	cursor       time.Time
	log          *slog.Logger
}

func newHandler(conn *protocol.LineConn, ledger *chat.Ledger, clock clockwork.Clock, pollInterval time.Duration, done <-chan struct{}) *handler {
	id := uuid.New()
	return &handler{
		id:           id,
		conn:         conn,
		ledger:       ledger,
		clock:        clock,
		pollInterval: pollInterval,
		done:         done,
		cursor:       clock.Now(),
		log:          slog.With("conn_id", id.String()),
	}
}

func (h *handler) run() error {
	if err := h.greet(); err != nil {
		return err
	}

	timer := h.clock.NewTimer(h.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-h.done:
			return nil
		default:
		}

		if err := h.cycle(); err != nil {
			return err
		}

		timer.Reset(h.pollInterval)
		select {
		case <-h.done:
			return nil
		case <-timer.Chan():
		}
	}
}

// greet performs the handshake: the client must speak first with a non-blank
// author name. A blank name is a protocol error and no greeting is sent.
func (h *handler) greet() error {
	author, err := h.conn.ReceiveOne()
	if err != nil {
		return err
	}
	if strings.TrimSpace(author) == "" {
		metrics.HandshakeFailures.Inc()
		return errors.ProtocolError("client hasn't responded with any meaningful author name")
	}

	h.author = author
	h.log = h.log.With("author", author)
	return h.conn.Send(fmt.Sprintf(greeting, author))
}

// cycle is one poll iteration: drain inbound notes into the ledger, then
// deliver not-yet-seen ledger entries back to the client.
func (h *handler) cycle() error {
	if h.author == "" {
		return errors.ProtocolError("connection has no author")
	}

	start := h.clock.Now()

	notes, readErr := h.conn.ReceiveAvailable()
	for _, note := range notes {
		if h.ledger.Insert(chat.NewMessage(h.author, h.clock.Now(), note)) {
			metrics.MessagesIngested.Inc()
		} else {
			metrics.MessagesCoalesced.Inc()
		}
	}
	if len(notes) > 0 {
		metrics.LedgerSize.Set(float64(h.ledger.Len()))
	}
	if readErr != nil {
		// drained notes are already in the ledger; the peer itself is gone
		return readErr
	}

	if err := h.deliver(); err != nil {
		return err
	}

	metrics.PollCycleDuration.Observe(h.clock.Since(start).Seconds())
	return nil
}

// deliver scans the ledger from the cursor and sends every entry not authored
// by this connection, advancing the cursor past each scanned stamp so no entry
// is rescanned on the next iteration.
func (h *handler) deliver() error {
	for _, msg := range h.ledger.ScanFrom(h.cursor) {
		if msg.Author != h.author {
			line := fmt.Sprintf("%s received message from %s on %s", h.author, msg, h.clock.Now().Format(chat.StampLayout))
			if err := h.conn.Send(line); err != nil {
				return err
			}
			metrics.MessagesDelivered.Inc()
		}
		if next := msg.NextStamp(); next.After(h.cursor) {
			h.cursor = next
		}
	}
	return nil
}
