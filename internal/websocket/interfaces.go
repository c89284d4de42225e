package websocket

import (
	"context"
	"encoding/json"
	"time"

	"bikepulse/internal/filter"
	"bikepulse/internal/services"
)

// Connection defines the interface for WebSocket connections
// This allows for proper mocking in tests
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// Dashboard computes snapshots for a session
type Dashboard interface {
	Snapshot(ctx context.Context, p filter.Params) (*services.Snapshot, error)
}

// FilterDecoder turns the data of a filter message into validated params
type FilterDecoder func(data json.RawMessage) (filter.Params, error)
