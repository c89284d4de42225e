package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikepulse/internal/dataset"
	"bikepulse/internal/locale"
	custommw "bikepulse/internal/middleware"
	"bikepulse/internal/services"
	"bikepulse/internal/shared/testutil"
	ws "bikepulse/internal/websocket"
)

type wsMessage struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T, cfg WebSocketConfig) (*httptest.Server, *ws.Hub) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	table, err := dataset.Load(context.Background(), testutil.WriteRentalCSV(t, sampleRows()...), dataset.Options{Logger: logger})
	require.NoError(t, err)
	svc := services.NewDashboardService(dataset.NewStore(table), locale.English, nil, logger)

	hub := ws.NewHub(logger, nil)
	hub.Start()
	t.Cleanup(hub.Stop)

	h := NewWebSocketHandler(hub, svc, custommw.NewValidator(), cfg, logger)
	srv := httptest.NewServer(custommw.RequestID(h))
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocketHandler_FilterRoundTrip(t *testing.T) {
	srv, hub := newWSServer(t, WebSocketConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, ws.TypeConnection)
	first := readUntil(t, conn, ws.TypeSnapshot)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": ws.TypeFilter,
		// reversed hours are swapped for live sessions
		"data": map[string]interface{}{"hour_min": 8, "hour_max": 5},
	}))

	msg := readUntil(t, conn, ws.TypeSnapshot)
	assert.Equal(t, uint64(2), msg.Seq)

	var snap services.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 5, snap.Params.HourMin)
	assert.Equal(t, 8, snap.Params.HourMax)
	assert.Equal(t, int64(310), snap.Summary.TotalRides)
}

func TestWebSocketHandler_InvalidFilter(t *testing.T) {
	srv, _ := newWSServer(t, WebSocketConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, ws.TypeSnapshot)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": ws.TypeFilter,
		"data": map[string]interface{}{"start": "tomorrow"},
	}))

	msg := readUntil(t, conn, ws.TypeError)
	var data ws.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "VALIDATION_FAILED", data.Code)
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WebSocketConfig
		origin  string
		allowed bool
	}{
		{"no origin", WebSocketConfig{AllowedOrigins: []string{"http://dash.example"}}, "", true},
		{"listed origin", WebSocketConfig{AllowedOrigins: []string{"http://dash.example"}}, "http://dash.example", true},
		{"foreign origin", WebSocketConfig{AllowedOrigins: []string{"http://dash.example"}}, "http://evil.example", false},
		{"development allows all", WebSocketConfig{AllowedOrigins: []string{"http://dash.example"}, Development: true}, "http://evil.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newWSServer(t, tt.cfg)

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
			if tt.allowed {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}
