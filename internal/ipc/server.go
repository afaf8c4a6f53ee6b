package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/network-dmenu/geofenced/internal/logging"
)

// Handler answers one decoded Request and returns the Response to send
// back. It must not block past RequestTimeout.
type Handler func(ctx context.Context, req Request) Response

// RequestTimeout bounds how long a single connection's request handling
// may take before the server closes it unilaterally.
const RequestTimeout = 5 * time.Second

// DrainTimeout bounds how long Shutdown waits for in-flight connections
// to finish before it removes the socket file and returns.
const DrainTimeout = 3 * time.Second

// Server accepts one JSON request per connection on a Unix socket.
type Server struct {
	SocketPath string
	Handler    Handler

	log      *logging.Logger
	listener net.Listener
	inflight chan struct{}
	done     chan struct{}
}

// NewServer builds a Server bound to socketPath, not yet listening.
func NewServer(socketPath string, handler Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		SocketPath: socketPath,
		Handler:    handler,
		log:        log.WithComponent("ipc"),
		inflight:   make(chan struct{}, 1024),
		done:       make(chan struct{}),
	}
}

// Start removes any stale socket file, listens, and begins accepting
// connections in a background goroutine. Callers are responsible for
// having already acquired the data-directory lock that rules out a
// second daemon instance; Start itself does not detect that case.
func (s *Server) Start() error {
	_ = os.Remove(s.SocketPath)

	l, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", s.SocketPath, err)
	}
	if err := os.Chmod(s.SocketPath, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("ipc: chmod socket: %w", err)
	}
	s.listener = l

	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.log.Warn("accept failed", "error", err)
				return
			}
		}
		s.inflight <- struct{}{}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		conn.Close()
		<-s.inflight
		if r := recover(); r != nil {
			s.log.Error("recovered panic handling ipc connection", "panic", r)
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(RequestTimeout))

	var req Request
	if err := ReadFrame(conn, &req); err != nil {
		s.log.Warn("failed to read request frame", "error", err)
		_ = WriteFrame(conn, Response{OK: false, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	resp := s.Handler(ctx, req)
	if err := WriteFrame(conn, resp); err != nil {
		s.log.Warn("failed to write response frame", "error", err)
	}
}

// Shutdown closes the listener so no new connections are accepted, waits
// up to DrainTimeout for in-flight ones to finish, then removes the
// socket file.
func (s *Server) Shutdown() {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}

	deadline := time.After(DrainTimeout)
drain:
	for len(s.inflight) > 0 {
		select {
		case <-deadline:
			s.log.Warn("shutdown drain timed out with requests still in flight", "remaining", len(s.inflight))
			break drain
		case <-time.After(50 * time.Millisecond):
		}
	}

	_ = os.Remove(s.SocketPath)
}

// MustMarshalResult wraps a result value into a Response, swallowing a
// marshal error into an error Response (json.Marshal only fails for
// cyclic/unsupported types, a programmer error this makes visible).
func MustMarshalResult(v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Response{OK: false, Error: fmt.Sprintf("ipc: marshal result: %v", err)}
	}
	return Response{OK: true, Result: body}
}
