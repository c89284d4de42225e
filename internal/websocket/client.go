package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/filter"
	"bikepulse/internal/infrastructure"
)

// Options tunes client keepalive and limits
type Options struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait
	PingPeriod time.Duration
	// Maximum message size allowed from peer
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultOptions returns the standard keepalive settings
func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages. Closed by the hub.
	send   chan []byte
	sendMu sync.Mutex
	closed bool

	session *Session
	decode  FilterDecoder
	opts    Options

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	messagesSent     int64
	messagesReceived int64
}

// NewClient creates a client with its own dashboard session
func NewClient(hub *Hub, conn Connection, dashboard Dashboard, decode FilterDecoder, opts Options, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)

	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, opts.SendBuffer),
		decode:      decode,
		opts:        opts,
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
	c.session = NewSession(c.context(), dashboard, c.sendMessage, hub.metrics, logger)
	return c
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// trySend queues a payload without blocking. It reports false when the
// buffer is full or the channel was closed.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendMessage(msg Message) bool {
	msg.TraceID = c.traceID
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.ErrorContext(c.context(), "error marshaling message",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		return false
	}
	return c.trySend(payload)
}

// ReadPump reads filter messages until the connection fails. It sends the
// full-range snapshot first so a fresh page has data without asking.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.session.Close()
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.InfoContext(ctx, "client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived))
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	c.session.Submit(filter.Params{})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		c.messagesReceived++
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendMessage(newMessage(TypeError, 0, ErrorData{Code: "INVALID_MESSAGE", Message: "message is not valid JSON"}))
		return
	}

	switch msg.Type {
	case TypeHeartbeat:
		c.logger.DebugContext(ctx, "heartbeat received")
	case TypeFilter:
		p, err := c.decode(msg.Data)
		if err != nil {
			c.sendMessage(newMessage(TypeError, 0, filterError(err)))
			return
		}
		c.session.Submit(p)
	default:
		c.sendMessage(newMessage(TypeError, 0, ErrorData{Code: "UNKNOWN_TYPE", Message: "unknown message type " + msg.Type}))
	}
}

func filterError(err error) ErrorData {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return ErrorData{Code: apiErr.ErrorCode, Message: apiErr.Message}
	}
	return ErrorData{Code: "INVALID_FILTER", Message: err.Error()}
}

// WritePump writes queued messages and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.DebugContext(c.context(), "write pump stopped",
			slog.Int64("messages_sent", c.messagesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.context(), "error writing message",
					slog.String("error", err.Error()))
				return
			}
			c.messagesSent++

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "failed to send ping",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Serve registers the client and starts its pumps
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.WritePump()
	go c.ReadPump()
}

// ServeWS wraps an upgraded connection in a client and serves it
func ServeWS(hub *Hub, conn *websocket.Conn, dashboard Dashboard, decode FilterDecoder, opts Options, traceID string, logger *slog.Logger) *Client {
	client := NewClient(hub, NewConnectionWrapper(conn), dashboard, decode, opts, traceID, logger)
	client.Serve()
	return client
}
