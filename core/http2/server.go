// Package http2 serves handlers over HTTP/2: h2 with ALPN when TLS is
// configured, h2c (cleartext, including prior knowledge) otherwise. HTTP/1.1
// clients are served on the same port.
package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var ErrServerClosed = errors.New("http2: server closed")

// Server provides HTTP/2 support with multiplexing and HPACK compression
type Server struct {
	server *http.Server
	h2     *http2.Server
	tls    bool
	log    *slog.Logger

	stats struct {
		totalConnections atomic.Uint64
		activeConns      atomic.Int64
	}

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// Config contains HTTP/2 server configuration
type Config struct {
	Addr                 string
	Handler              http.Handler
	TLSConfig            *tls.Config
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	IdleTimeout          time.Duration
	Logger               *slog.Logger
}

// NewServer creates a new HTTP/2 server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("http2: nil handler")
	}
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20 // 1MB
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{log: cfg.Logger}
	s.h2 = &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      cfg.Handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		ConnState:    s.trackConn,
	}

	if cfg.TLSConfig != nil {
		s.tls = true
		s.server.TLSConfig = cfg.TLSConfig.Clone()
		s.server.TLSConfig.NextProtos = []string{"h2", "http/1.1"}
		if err := http2.ConfigureServer(s.server, s.h2); err != nil {
			return nil, fmt.Errorf("http2: configure: %w", err)
		}
	} else {
		s.server.Handler = h2c.NewHandler(cfg.Handler, s.h2)
	}
	return s, nil
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.stats.totalConnections.Add(1)
		s.stats.activeConns.Add(1)
	case http.StateHijacked, http.StateClosed:
		s.stats.activeConns.Add(-1)
	}
}

// Protocol returns "h2" or "h2c".
func (s *Server) Protocol() string {
	if s.tls {
		return "h2"
	}
	return "h2c"
}

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns ErrServerClosed after a shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("http2: listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("server listening", "addr", ln.Addr().String(), "protocol", s.Protocol())

	var err error
	if s.tls {
		err = s.server.ServeTLS(ln, "", "")
	} else {
		err = s.server.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}
	return err
}

// Addr returns the listener address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.log.Info("server shutting down", "active_conns", s.stats.activeConns.Load())
	return s.server.Shutdown(ctx)
}

// Close closes all connections immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.server.Close()
}

// Stats is a snapshot of connection counters.
type Stats struct {
	TotalConnections uint64 `json:"total_connections"`
	ActiveConns      int64  `json:"active_connections"`
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		TotalConnections: s.stats.totalConnections.Load(),
		ActiveConns:      s.stats.activeConns.Load(),
	}
}
