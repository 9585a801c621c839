package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/config"
	"github.com/pscheid92/chatroom/internal/errors"
	"github.com/pscheid92/chatroom/internal/metrics"
	"github.com/pscheid92/chatroom/internal/protocol"
)

// Server is the TCP accept loop. It times out on accept periodically so the
// shutdown flag is observed without blocking forever, and dispatches each
// admitted connection to its own handler goroutine.
type Server struct {
	listenAddr    string
	acceptTimeout time.Duration
	pollInterval  time.Duration
	ledger        *chat.Ledger
	clock         clockwork.Clock
	limits        *ConnectionLimits
	listener      *net.TCPListener
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	log           *slog.Logger
}

// NewServer creates a chat server over the given shared ledger.
func NewServer(cfg *config.Config, ledger *chat.Ledger, clock clockwork.Clock) *Server {
	return &Server{
		listenAddr:    cfg.ListenAddr,
		acceptTimeout: cfg.AcceptTimeout,
		pollInterval:  cfg.PollInterval,
		ledger:        ledger,
		clock:         clock,
		limits:        NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		done:          make(chan struct{}),
		log:           slog.With("component", "chat_server"),
	}
}

// Listen binds the TCP listener.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return errors.FatalError("can't listen", err).WithContext("addr", s.listenAddr)
	}
	s.listener = ln.(*net.TCPListener)
	s.log.Info("server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until Shutdown is called or a fatal error occurs.
func (s *Server) Serve() error {
	for {
		select {
		case <-s.done:
			return nil
		default:
		}

		if err := s.listener.SetDeadline(time.Now().Add(s.acceptTimeout)); err != nil {
			return errors.FatalError("can't arm accept deadline", err)
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// expired accept deadline: loop around to re-check shutdown
				continue
			}
			select {
			case <-s.done:
				return nil
			default:
			}
			return errors.FatalError("server communication error", err)
		}

		s.dispatch(conn)
	}
}

// Start binds the listener and runs the accept loop. Blocks until shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown signals the accept loop and all handlers to stop. Idempotent,
// non-blocking, and safe to call concurrently with the accept loop and
// in-flight handlers. Use Drain to wait for workers.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Drain waits for all connection handlers to finish or the context to expire.
func (s *Server) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections returns the number of currently admitted connections.
func (s *Server) ActiveConnections() int64 {
	return s.limits.Active()
}

func (s *Server) dispatch(conn net.Conn) {
	ip := remoteIP(conn)

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		s.log.Warn("connection rejected", "remote_addr", conn.RemoteAddr().String(), "reason", string(reason))
		_ = conn.Close()
		return
	}

	metrics.ConnectionsAccepted.Inc()
	metrics.ConnectionsActive.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer metrics.ConnectionsActive.Dec()
		defer s.limits.Release(ip)
		s.handle(conn)
	}()
}

func (s *Server) handle(conn net.Conn) {
	lc := protocol.NewLineConn(conn)
	defer func() { _ = lc.Close() }()

	h := newHandler(lc, s.ledger, s.clock, s.pollInterval, s.done)
	if err := h.run(); err != nil {
		// failures are local to this connection; surface them and move on
		switch {
		case errors.IsProtocol(err):
			h.log.Warn("connection closed on protocol error", "error", err)
		default:
			h.log.Error("server working thread communication error", "error", err)
		}
	}
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
