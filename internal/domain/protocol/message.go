package protocol

import "github.com/lunDreame/st-bridge/internal/domain/model"

// Version is the protocol version spoken by this bridge. Peers are compatible
// when the major component matches; newer minors may add message types, which
// are ignored.
const Version = "1.1"

type Type string

const (
	TypeHello       Type = "hello"
	TypeDeviceList  Type = "device_list"
	TypeStateUpdate Type = "state_update"
	TypeCommand     Type = "command"
	TypeAck         Type = "ack"
	TypeNack        Type = "nack"
	TypePing        Type = "ping"
)

// Known reports whether the type is one this bridge version understands.
// Unknown types from newer minor versions are skipped, not errors.
func (t Type) Known() bool {
	switch t {
	case TypeHello, TypeDeviceList, TypeStateUpdate, TypeCommand, TypeAck, TypeNack, TypePing:
		return true
	}
	return false
}

// Nack reason codes.
const (
	ReasonVersionMismatch       = "version_mismatch"
	ReasonUnauthorized          = "unauthorized"
	ReasonUnknownDevice         = "unknown_device"
	ReasonUnsupportedCapability = "unsupported_capability"
	ReasonPlatformError         = "platform_error"
	ReasonConnectionLost        = "connection_lost"
)

// DeviceInfo is one registry entry as announced in a device_list.
type DeviceInfo struct {
	ID           string              `json:"id"`
	Name         string              `json:"name,omitempty"`
	Domain       string              `json:"domain"`
	Capabilities []string            `json:"capabilities,omitempty"`
	State        model.CapabilityMap `json:"state,omitempty"`
}

// Message is the wire envelope. Fields beyond Type are populated per variant:
// hello carries Version/Token, device_list carries Devices, state_update and
// command carry DeviceID/Values, nack carries Reason.
type Message struct {
	Type          Type   `json:"type"`
	Version       string `json:"version,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	Token         string `json:"token,omitempty"`
	TokenRequired bool   `json:"token_required,omitempty"`

	Devices []DeviceInfo `json:"devices,omitempty"`

	DeviceID string              `json:"device_id,omitempty"`
	Values   model.CapabilityMap `json:"values,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Hello builds the bridge-side handshake message.
func Hello(tokenRequired bool) Message {
	return Message{Type: TypeHello, Version: Version, TokenRequired: tokenRequired}
}

// Ack builds an ack correlated to the given message id.
func Ack(correlationID string) Message {
	return Message{Type: TypeAck, CorrelationID: correlationID}
}

// Nack builds a nack with the given reason, correlated to the given message id.
func Nack(correlationID, reason string) Message {
	return Message{Type: TypeNack, CorrelationID: correlationID, Reason: reason}
}
