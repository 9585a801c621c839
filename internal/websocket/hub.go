package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/metrics"
)

const (
	maxClients        = 50
	writeDeadline     = 5 * time.Second
	messageBufferSize = 16
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, messageBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Event is the JSON rendering of a ledger entry on the firehose.
type Event struct {
	Author string    `json:"author"`
	Stamp  time.Time `json:"stamp"`
	Note   string    `json:"note"`
}

// Hub streams every new ledger entry to all connected observers.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[*websocket.Conn]*clientWriter
	ledger  *chat.Ledger
	clock   clockwork.Clock
	cursor  time.Time
	tick    time.Duration
	stopped chan struct{}
}

// NewHub creates a hub tailing the given ledger and starts its actor loop.
// The cursor starts at hub creation time: observers only see entries stored
// after the hub came up.
func NewHub(ledger *chat.Ledger, clock clockwork.Clock, tick time.Duration) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[*websocket.Conn]*clientWriter),
		ledger:  ledger,
		clock:   clock,
		cursor:  clock.Now(),
		tick:    tick,
		stopped: make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds an observer connection. Returns an error if the hub is full.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}:
	case <-h.stopped:
		return fmt.Errorf("firehose hub is stopped")
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return fmt.Errorf("firehose hub is stopped")
	}
}

// Unregister removes an observer connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{conn: conn}:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdClientCount{replyCh: replyCh}:
	case <-h.stopped:
		return 0
	}
	select {
	case count := <-replyCh:
		return count
	case <-h.stopped:
		return 0
	}
}

// Stop shuts the hub down and disconnects all observers.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- cmdStop{}:
		<-h.stopped
	case <-h.stopped:
	}
}

func (h *Hub) run() {
	ticker := h.clock.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case cmdRegister:
				h.handleRegister(c)
			case cmdUnregister:
				h.handleUnregister(c.conn)
			case cmdClientCount:
				c.replyCh <- len(h.clients)
			case cmdStop:
				h.handleStop()
				return
			}
		case <-ticker.Chan():
			h.pump()
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("rejecting firehose observer: max clients reached", "max", maxClients)
		_ = c.conn.Close()
		c.errCh <- fmt.Errorf("max firehose clients (%d) reached", maxClients)
		return
	}

	h.clients[c.conn] = newClientWriter(c.conn)
	metrics.FirehoseClients.Set(float64(len(h.clients)))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.FirehoseClients.Set(float64(len(h.clients)))
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.FirehoseClients.Set(0)
	close(h.stopped)
}

// pump scans the ledger tail from the hub cursor and fans new entries out.
// Observers with a full send buffer are evicted rather than stalling the feed.
func (h *Hub) pump() {
	for _, msg := range h.ledger.ScanFrom(h.cursor) {
		if next := msg.NextStamp(); next.After(h.cursor) {
			h.cursor = next
		}

		data, err := json.Marshal(Event{Author: msg.Author, Stamp: msg.Stamp, Note: msg.Note})
		if err != nil {
			slog.Error("can't marshal firehose event", "error", err)
			continue
		}

		var slow []*websocket.Conn
		for conn, cw := range h.clients {
			select {
			case cw.sendCh <- data:
			default:
				slow = append(slow, conn)
			}
		}
		for _, conn := range slow {
			metrics.FirehoseSlowClientsEvicted.Inc()
			slog.Warn("disconnecting slow firehose observer")
			h.handleUnregister(conn)
		}
	}
}
