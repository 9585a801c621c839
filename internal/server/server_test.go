package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:          "127.0.0.1:0",
		AcceptTimeout:       50 * time.Millisecond,
		PollInterval:        5 * time.Millisecond,
		MaxConnections:      16,
		MaxConnectionsPerIP: 16,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
	}
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv := NewServer(cfg, chat.NewLedger(), clockwork.NewRealClock())
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()

	t.Cleanup(func() {
		srv.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Drain(ctx)
	})
	return srv
}

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestServer(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *testClient) receive(t *testing.T, timeout time.Duration) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(timeout)))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func (c *testClient) expectSilence(t *testing.T, window time.Duration) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(window)))
	_, err := c.reader.ReadString('\n')
	require.Error(t, err)
	ne, ok := err.(net.Error)
	require.True(t, ok && ne.Timeout(), "expected silence, got: %v", err)
}

func TestEndToEndBroadcast(t *testing.T) {
	srv := startTestServer(t, testConfig())

	alice := dialTestServer(t, srv)
	alice.send(t, "alice")
	assert.Equal(t, "Hi, alice!", alice.receive(t, time.Second))

	bob := dialTestServer(t, srv)
	bob.send(t, "bob")
	assert.Equal(t, "Hi, bob!", bob.receive(t, time.Second))

	alice.send(t, "hello")

	line := bob.receive(t, 2*time.Second)
	assert.Contains(t, line, "alice")
	assert.Contains(t, line, "hello")

	// alice must not see her own note, and bob sent nothing
	alice.expectSilence(t, 300*time.Millisecond)
}

func TestHandshakeRejectionClosesConnection(t *testing.T) {
	srv := startTestServer(t, testConfig())

	c := dialTestServer(t, srv)
	c.send(t, "   ")

	// the server closes the connection without sending a greeting
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestConnectionFailureIsLocal(t *testing.T) {
	srv := startTestServer(t, testConfig())

	// one connection dies mid-protocol
	dead := dialTestServer(t, srv)
	dead.send(t, "mallory")
	assert.Equal(t, "Hi, mallory!", dead.receive(t, time.Second))
	require.NoError(t, dead.conn.Close())

	// the server keeps serving everyone else
	alice := dialTestServer(t, srv)
	alice.send(t, "alice")
	assert.Equal(t, "Hi, alice!", alice.receive(t, time.Second))
}

func TestGlobalConnectionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv := startTestServer(t, cfg)

	first := dialTestServer(t, srv)
	first.send(t, "alice")
	assert.Equal(t, "Hi, alice!", first.receive(t, time.Second))

	// the second connection is rejected and closed without a handshake
	second := dialTestServer(t, srv)
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := second.reader.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestShutdownStopsServing(t *testing.T) {
	srv := startTestServer(t, testConfig())
	addr := srv.Addr().String()

	srv.Shutdown()
	// Shutdown is idempotent and safe to repeat
	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Drain(ctx))

	// the listener is down; new connections must fail
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			return false
		}
		return true
	}, time.Second, 20*time.Millisecond)
}
