package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lunDreame/st-bridge/internal/domain/protocol"
	"github.com/lunDreame/st-bridge/internal/logger"
	"github.com/lunDreame/st-bridge/internal/ports"
)

// ErrSessionClosed is returned by Send once the session has been torn down.
var ErrSessionClosed = errors.New("tcp: session closed")

// Session is one live hub connection. A read loop decodes inbound frames and
// hands them to the handler; a write loop drains the outbound queue. Any I/O
// error, protocol error, or idle expiry tears the whole session down.
type Session struct {
	cfg     Config
	conn    net.Conn
	handler ports.HubHandler
	log     *logger.Logger

	out  chan protocol.Message
	done chan struct{}

	closeOnce sync.Once
}

func newSession(cfg Config, conn net.Conn, handler ports.HubHandler, log *logger.Logger) *Session {
	return &Session{
		cfg:     cfg,
		conn:    conn,
		handler: handler,
		log:     log,
		out:     make(chan protocol.Message, cfg.OutboundBuffer),
		done:    make(chan struct{}),
	}
}

// Send enqueues a message for the write loop. Per-device ordering follows
// enqueue order.
func (s *Session) Send(msg protocol.Message) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	case s.out <- msg:
		return nil
	}
}

func (s *Session) Close() error {
	s.close()
	return nil
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// run owns the session lifecycle: handshake, loops, teardown.
func (s *Session) run() {
	defer s.close()

	dec := protocol.NewDecoder(s.conn)
	if err := s.handshake(dec); err != nil {
		s.log.Warnw("handshake failed", "remote", s.RemoteAddr(), "err", err)
		return
	}

	s.handler.SessionUp(s)
	go s.writeLoop()

	reason := s.readLoop(dec)
	s.handler.SessionDown(s, reason)

	// Give the coordinator a moment to flush connection_lost nacks before
	// the socket goes away.
	s.awaitFlush()
}

// handshake is version-first: the bridge announces itself, the hub must
// answer with a compatible hello (and the shared token) within the deadline.
func (s *Session) handshake(dec *protocol.Decoder) error {
	if err := s.write(protocol.Hello(s.cfg.Token != "")); err != nil {
		return err
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	msg, err := dec.Next()
	if err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if msg.Type != protocol.TypeHello {
		_ = s.write(protocol.Nack(msg.CorrelationID, protocol.ReasonVersionMismatch))
		return fmt.Errorf("expected hello, got %s", msg.Type)
	}
	if !protocol.CompatibleVersion(msg.Version) {
		_ = s.write(protocol.Nack(msg.CorrelationID, protocol.ReasonVersionMismatch))
		return fmt.Errorf("incompatible protocol version %q", msg.Version)
	}
	if s.cfg.Token != "" && msg.Token != s.cfg.Token {
		_ = s.write(protocol.Nack(msg.CorrelationID, protocol.ReasonUnauthorized))
		return errors.New("bad token")
	}
	return nil
}

func (s *Session) readLoop(dec *protocol.Decoder) string {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		msg, err := dec.Next()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrMalformedMessage), errors.Is(err, protocol.ErrFrameTooLarge):
				s.log.Warnw("protocol error, dropping session", "remote", s.RemoteAddr(), "err", err)
			default:
				// I/O error, idle expiry, or remote close.
				s.log.Infow("session read ended", "remote", s.RemoteAddr(), "err", err)
			}
			return protocol.ReasonConnectionLost
		}

		switch {
		case msg.Type == protocol.TypePing:
			// Any inbound frame resets the idle window; pings just get acked.
			_ = s.Send(protocol.Ack(msg.CorrelationID))
		case !msg.Type.Known():
			s.log.Debugw("ignoring unknown message type", "type", msg.Type)
		default:
			s.handler.HandleMessage(s, msg)
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			// Best-effort final flush of whatever is already queued.
			for {
				select {
				case msg := <-s.out:
					_ = s.write(msg)
				default:
					return
				}
			}
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				s.log.Debugw("write failed", "remote", s.RemoteAddr(), "err", err)
				s.close()
				return
			}
		}
	}
}

func (s *Session) write(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_, err = s.conn.Write(frame)
	return err
}

// awaitFlush waits briefly for the outbound queue to drain after session
// death, so final nacks reach the wire when the socket still works.
func (s *Session) awaitFlush() {
	deadline := time.Now().Add(s.cfg.FlushTimeout)
	for {
		time.Sleep(10 * time.Millisecond)
		if len(s.out) == 0 || !time.Now().Before(deadline) {
			return
		}
	}
}
