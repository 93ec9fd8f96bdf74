package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lunDreame/st-bridge/internal/logger"
	"github.com/lunDreame/st-bridge/internal/ports"
)

// DefaultPort is the bridge protocol's well-known TCP port.
const DefaultPort = 8323

// Config holds the connection manager settings.
type Config struct {
	// Addr is the listen address, e.g. ":8323".
	Addr string
	// Token is the shared secret the hub must present in its hello. Empty
	// disables authentication.
	Token string

	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
	FlushTimeout     time.Duration
	OutboundBuffer   int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Addr == "" {
		out.Addr = fmt.Sprintf(":%d", DefaultPort)
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = 30 * time.Second
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = 90 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.FlushTimeout <= 0 {
		out.FlushTimeout = 250 * time.Millisecond
	}
	if out.OutboundBuffer <= 0 {
		out.OutboundBuffer = 64
	}
	return out
}

// Server accepts hub connections. The hub is singular and authoritative on
// reconnect: at most one session is live, and a new connection supersedes
// the prior one. The bridge never dials out; reconnecting is the hub's job.
type Server struct {
	cfg     Config
	handler ports.HubHandler
	log     *logger.Logger

	mu      sync.Mutex
	ln      net.Listener
	current *Session
}

func NewServer(cfg Config, handler ports.HubHandler, log *logger.Logger) *Server {
	return &Server{
		cfg:     cfg.withDefaults(),
		handler: handler,
		log:     log,
	}
}

// Addr returns the bound listen address, or nil before ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe binds the listener and accepts sessions until ctx is
// cancelled. A bind failure is fatal and returned to the caller.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("tcp: bind %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Infow("bridge listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeCurrent()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tcp: accept: %w", err)
		}
		s.adopt(conn)
	}
}

// adopt supersedes any prior session and starts a new one.
func (s *Server) adopt(conn net.Conn) {
	sess := newSession(s.cfg, conn, s.handler, s.log)

	s.mu.Lock()
	prev := s.current
	s.current = sess
	s.mu.Unlock()

	if prev != nil {
		s.log.Infow("superseding previous hub session", "remote", prev.RemoteAddr())
		prev.close()
	}
	s.log.Infow("hub connected", "remote", sess.RemoteAddr())
	go sess.run()
}

func (s *Server) closeCurrent() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur != nil {
		cur.close()
	}
}
