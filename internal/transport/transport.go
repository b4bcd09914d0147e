package transport

import (
	"context"
	"encoding/json"
)

// Message represents a JSON-RPC message
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Transport defines the interface for MCP communication transports
type Transport interface {
	// Start begins serving messages and blocks until ctx is done or input ends
	Start(ctx context.Context) error

	// WriteMessage sends an unsolicited message (notification) to the client
	WriteMessage(msg *Message) error

	// Close gracefully shuts down the transport
	Close() error
}

// Handler processes incoming messages and returns responses.
// A nil response means nothing is sent back (notifications).
type Handler func(ctx context.Context, msg *Message) (*Message, error)

// InternalError builds the response sent when a handler fails outright
func InternalError(id json.RawMessage, err error) *Message {
	if id == nil || string(id) == "null" {
		id = json.RawMessage("0")
	}
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    -32603,
			Message: err.Error(),
		},
	}
}
