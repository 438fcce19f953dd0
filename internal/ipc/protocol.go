// Package ipc carries launcher requests between processes: the plugin or the
// CLI sends game_ready and launch requests to a serve host, which replies with
// the attempt result.
package ipc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion is the current IPC protocol version
	ProtocolVersion = "1.0"

	// MaxMessageSize bounds one JSON message. Launch requests and results
	// are a few hundred bytes; the rest is room for joined warning text.
	MaxMessageSize = 16 * 1024

	// HeaderSize is the size of the length header (4 bytes)
	HeaderSize = 4
)

// MessageType defines the type of IPC message
type MessageType string

const (
	// MsgGameReady asks the host to run the passive discover-or-launch path
	MsgGameReady MessageType = "game_ready"

	// MsgLaunch asks the host to replace any running instance
	MsgLaunch MessageType = "launch"

	// MsgResult is the reply to MsgGameReady and MsgLaunch
	MsgResult MessageType = "result"

	// MsgPing is sent for health check
	MsgPing MessageType = "ping"

	// MsgPong is the response to ping
	MsgPong MessageType = "pong"

	// MsgError is sent when a request could not be handled
	MsgError MessageType = "error"
)

// Role identifies the sender of a message
type Role string

const (
	// RoleHost is the serve process (IPC server)
	RoleHost Role = "host"

	// RolePlugin is the launcher loaded by the game
	RolePlugin Role = "plugin"

	// RoleCLI is a one-shot command line client
	RoleCLI Role = "cli"
)

// Message represents an IPC message between processes
type Message struct {
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	Type      MessageType     `json:"type"`
	Source    Role            `json:"source"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`

	// ReplyTo is the ID of the request this message answers
	ReplyTo string `json:"reply_to,omitempty"`
}

// NewMessage creates a new message with the given type and source
func NewMessage(msgType MessageType, source Role) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Version:   ProtocolVersion,
		Type:      msgType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithPayload sets the payload from any serializable value
func (m *Message) WithPayload(payload any) *Message {
	data, err := json.Marshal(payload)
	if err == nil {
		m.Payload = data
	}
	return m
}

// WithReplyTo sets the reply-to field
func (m *Message) WithReplyTo(replyTo string) *Message {
	m.ReplyTo = replyTo
	return m
}

// ParsePayload unmarshals the payload into the given target
func (m *Message) ParsePayload(target any) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, target)
}

// ResultPayload is the payload for MsgResult
type ResultPayload struct {
	Success bool   `json:"success"`
	Attempt string `json:"attempt,omitempty"`
	State   string `json:"state"`
	PID     int    `json:"pid,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload is the payload for MsgError
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler answers a request. A nil reply sends nothing back.
type Handler interface {
	Handle(msg *Message) (*Message, error)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as handlers
type HandlerFunc func(msg *Message) (*Message, error)

// Handle implements Handler interface
func (f HandlerFunc) Handle(msg *Message) (*Message, error) {
	return f(msg)
}
