package ports

import (
	"github.com/lunDreame/st-bridge/internal/domain/protocol"
)

// HubSession is one live, handshaken connection to the hub. Send enqueues a
// message on the session's outbound queue and fails once the session is
// closed; messages enqueued for one device are written in order.
type HubSession interface {
	Send(msg protocol.Message) error
	Close() error
	RemoteAddr() string
}

// HubHandler receives inbound traffic and session transitions from the
// connection manager.
type HubHandler interface {
	SessionUp(s HubSession)
	SessionDown(s HubSession, reason string)
	HandleMessage(s HubSession, msg protocol.Message)
}
