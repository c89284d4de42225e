package websocket

import (
	"encoding/json"
	"time"
)

// Message types
const (
	TypeConnection      = "connection"
	TypeHeartbeat       = "heartbeat"
	TypeFilter          = "filter"
	TypeSnapshot        = "snapshot"
	TypeError           = "error"
	TypeDatasetReloaded = "dataset:reloaded"
)

// Message is the envelope for server to client messages
type Message struct {
	Type      string      `json:"type"`
	Seq       uint64      `json:"seq,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inbound is a client to server message
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newMessage(msgType string, seq uint64, data interface{}) Message {
	return Message{
		Type:      msgType,
		Seq:       seq,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
