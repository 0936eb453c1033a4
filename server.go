package wren

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	wrenio "github.com/synqronlabs/wren/io"
	"github.com/synqronlabs/wren/utils"
)

// Server is an SMTP server that handles concurrent connections.
type Server struct {
	config   ServerConfig
	commands CommandTable

	listenerMu sync.Mutex
	listener   net.Listener

	// connections tracks active connections
	connMu      sync.Mutex
	connections map[*Session]*wrenio.TextConn

	// shutdown coordination
	ctx        context.Context
	cancel     context.CancelFunc
	shutdownWg sync.WaitGroup
	closed     atomic.Bool
}

// NewServer creates a new SMTP server with the given configuration.
// The configuration is validated and, when no hostname is set, the hostname
// is resolved here.
func NewServer(config ServerConfig) (*Server, error) {
	config, err := config.resolved()
	if err != nil {
		return nil, err
	}

	middleware := []Middleware{Recovery(config.Logger)}
	if config.Debug {
		middleware = append(middleware, Logger(config.Logger))
	}
	middleware = append(middleware, config.Middleware...)

	table := append(CommandTable(nil), config.Commands...)
	table = append(table, DefaultCommands()...)

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:      config,
		commands:    table.With(middleware...),
		connections: make(map[*Session]*wrenio.TextConn),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Config returns the resolved configuration.
func (s *Server) Config() ServerConfig {
	return s.config
}

// Hostname returns the announced host name.
func (s *Server) Hostname() string {
	return s.config.Hostname
}

// Addr returns the address the server listens on, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe starts the SMTP server on the configured address.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("smtp: failed to listen: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on the listener and handles them. It always
// returns a non-nil error; after Shutdown or Close it is ErrServerClosed.
func (s *Server) Serve(listener net.Listener) error {
	s.listenerMu.Lock()
	if s.closed.Load() {
		s.listenerMu.Unlock()
		_ = listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.listenerMu.Unlock()

	s.config.Logger.Info("SMTP server started",
		slog.String("addr", listener.Addr().String()),
		slog.String("hostname", s.config.Hostname),
		slog.Any("extensions", s.config.Extensions),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.config.Logger.Warn("accept error", slog.Any("error", err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		s.shutdownWg.Add(1)
		go s.handleConnection(conn)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()

	// Send 421 response to all connected clients
	s.sendShutdownResponse()

	// Wait for connections to finish with context timeout
	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.closeConnections()
		return ctx.Err()
	}
}

// Close immediately closes the server and all connections.
func (s *Server) Close() error {
	s.stop()
	s.sendShutdownResponse()
	s.closeConnections()
	return nil
}

func (s *Server) stop() {
	s.closed.Store(true)
	s.cancel()

	s.listenerMu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.listenerMu.Unlock()
}

func (s *Server) closeConnections() {
	s.connMu.Lock()
	for _, conn := range s.connections {
		_ = conn.Close()
	}
	s.connMu.Unlock()
}

// sendShutdownResponse sends a 421 response to all connected clients and
// closes them. Per RFC 5321, servers should send 421 before closing
// connections.
func (s *Server) sendShutdownResponse() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	resp := Response{
		Code:    CodeServiceUnavailable,
		Message: s.config.Hostname + " Service shutting down",
	}
	for _, conn := range s.connections {
		_ = conn.WriteLine(resp.String())
		// Close the connection to unblock any pending reads
		_ = conn.Close()
	}
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(netConn net.Conn) {
	defer s.shutdownWg.Done()

	start := time.Now()
	conn := wrenio.NewTextConn(netConn, s.config.MaxLineSize, s.config.ReadTimeout, s.config.WriteTimeout)
	session := newSession(s.ctx, utils.GenerateID(), &s.config, s.commands, conn, netConn.RemoteAddr())

	// Track connection
	s.connMu.Lock()
	s.connections[session] = conn
	s.connMu.Unlock()
	s.config.Observer.ConnectionOpened()

	defer func() {
		s.connMu.Lock()
		delete(s.connections, session)
		s.connMu.Unlock()
		_ = conn.Close()
		s.config.Observer.ConnectionClosed(time.Since(start))
	}()

	session.logger.Info("client connected")

	err := session.serve()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, ErrConnectionAborted) {
		session.logger.Error("session error", slog.Any("error", err))
	}

	session.logger.Info("client disconnected",
		slog.Int64("commands", session.commandCount),
		slog.Int64("messages", session.messageCount),
		slog.Duration("duration", time.Since(start)),
	)
}
