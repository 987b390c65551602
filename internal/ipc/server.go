package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"veil/internal/logging"
)

// Handler processes a decoded request and returns the response message.
// Returning nil closes the connection.
type Handler interface {
	Handle(ctx context.Context, msg *Message) *Message
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) *Message

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) *Message {
	return f(ctx, msg)
}

// Server accepts control connections on a unix socket and dispatches
// request messages to a Handler, one connection per goroutine.
type Server struct {
	socketPath string
	handler    Handler
	log        *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server bound to socketPath.
func NewServer(socketPath string, handler Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log.WithComponent("ipc"),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening. It removes a stale socket file left by a
// previous run before binding.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = ln

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	s.log.Info("ipc server listening", "socket", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight connections, and removes
// the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	cancel := s.cancel
	s.listener = nil
	s.cancel = nil
	s.mu.Unlock()

	if ln == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	ln.Close()

	// Unblock connections parked in a read; waiting out their idle timeout
	// would stall shutdown.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	os.Remove(s.socketPath)
	s.log.Info("ipc server stopped")
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.serveConn(ctx, conn)
		}()
	}
}

// connIdleTimeout bounds how long an idle control connection is held open.
const connIdleTimeout = 5 * time.Minute

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(connIdleTimeout))

		msg, err := ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.log.Debug("connection read failed", "error", err)
			}
			return
		}

		resp := s.handler.Handle(ctx, msg)
		if resp == nil {
			return
		}
		resp.Header.RequestID = msg.Header.RequestID

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := resp.Write(conn); err != nil {
			s.log.Debug("connection write failed", "error", err)
			return
		}
	}
}
