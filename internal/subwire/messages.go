package subwire

import "encoding/json"

// Protocol message kinds for the persistent connection. The client opens
// with connection_init, starts named operations with subscribe, and may
// end one early with complete. The server answers connection_ack and
// emits next/error/complete per operation id, with exactly one terminal
// message (error or complete) per id.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
	MsgPing           = "ping"
	MsgPong           = "pong"

	// Legacy aliases accepted from older clients.
	MsgStart = "start"
	MsgStop  = "stop"
)

// Message is one protocol frame in either direction.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OperationRequest is the payload of a subscribe frame.
type OperationRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}
