package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	apierrors "bikepulse/internal/errors"
	custommw "bikepulse/internal/middleware"
	ws "bikepulse/internal/websocket"
)

// WebSocketHandler upgrades GET /ws and attaches a live dashboard session
type WebSocketHandler struct {
	hub       *ws.Hub
	dashboard ws.Dashboard
	decode    ws.FilterDecoder
	opts      ws.Options
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// WebSocketConfig configures the upgrade
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	// Development accepts any origin
	Development bool
	Options     ws.Options
}

// NewWebSocketHandler creates a WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, dashboard ws.Dashboard, validator *custommw.Validator, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	if cfg.Options == (ws.Options{}) {
		cfg.Options = ws.DefaultOptions()
	}
	h := &WebSocketHandler{
		hub:       hub,
		dashboard: dashboard,
		decode:    validator.DecodeFilter,
		opts:      cfg.Options,
		logger:    logger.With(slog.String("handler", "websocket")),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// no origin: same-origin or non-browser client
			if origin == "" || cfg.Development {
				return true
			}
			if custommw.OriginAllowed(cfg.AllowedOrigins, origin) {
				return true
			}
			h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", cfg.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.ErrorContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			apierrors.WriteError(w, apierrors.NewWithDetails(status,
				apierrors.ErrWebSocketUpgrade.ErrorCode, apierrors.ErrWebSocketUpgrade.Message, reason.Error()))
		},
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := custommw.GetRequestID(ctx)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered
		return
	}

	client := ws.ServeWS(h.hub, conn, h.dashboard, h.decode, h.opts, reqID, h.logger)
	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))
}
