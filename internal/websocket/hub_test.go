package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/chatroom/internal/chat"
)

// testHub sets up a Hub over a fresh ledger with a test HTTP server and
// returns a dial function for observers.
func testHub(t *testing.T) (*Hub, *chat.Ledger, func() *ws.Conn) {
	t.Helper()

	ledger := chat.NewLedger()
	hub := NewHub(ledger, clockwork.NewRealClock(), 10*time.Millisecond)
	t.Cleanup(hub.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if err := hub.Register(conn); err != nil {
			return
		}
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	return hub, ledger, dial
}

func TestHubStreamsNewLedgerEntries(t *testing.T) {
	hub, ledger, dial := testHub(t)

	conn := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ledger.Insert(chat.NewMessage("alice", time.Now(), "hello observers"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "alice", event.Author)
	assert.Equal(t, "hello observers", event.Note)
}

func TestHubFansOutToAllObservers(t *testing.T) {
	hub, ledger, dial := testHub(t)

	first := dial()
	second := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	ledger.Insert(chat.NewMessage("bob", time.Now(), "to everyone"))

	for _, conn := range []*ws.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, "to everyone", event.Note)
	}
}

func TestHubDoesNotReplayEntriesFromBeforeItStarted(t *testing.T) {
	hub, ledger, dial := testHub(t)

	conn := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// stamped before the hub's cursor, so it stays below the watermark
	ledger.Insert(chat.NewMessage("alice", time.Now().Add(-time.Minute), "before hub start"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "entries below the hub cursor must not be delivered")
}

func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub, _, dial := testHub(t)

	conn := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubStopIsIdempotent(t *testing.T) {
	ledger := chat.NewLedger()
	hub := NewHub(ledger, clockwork.NewRealClock(), 10*time.Millisecond)

	hub.Stop()
	hub.Stop()

	assert.Error(t, hub.Register(nil))
	assert.Equal(t, 0, hub.ClientCount())
}
