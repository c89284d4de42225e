package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikepulse/internal/filter"
	"bikepulse/internal/shared/testutil"
)

type wireFilter struct {
	HourMin int `json:"hour_min"`
	HourMax int `json:"hour_max"`
}

func decodeWire(data json.RawMessage) (filter.Params, error) {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return filter.Params{}, err
	}
	return filter.Params{HourMin: w.HourMin, HourMax: w.HourMax}, nil
}

func newTestClient(t *testing.T, hub *Hub, conn *MockConnection) *Client {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewClient(hub, conn, newFakeDashboard(), decodeWire, DefaultOptions(), "trace-1", logger)
}

func readSent(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case payload := <-c.send:
		var m Message
		require.NoError(t, json.Unmarshal(payload, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return Message{}
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	defer hub.Stop()

	client := newTestClient(t, hub, NewMockConnection())
	hub.Register(client)

	welcome := readSent(t, client)
	assert.Equal(t, TypeConnection, welcome.Type)
	assert.Equal(t, "trace-1", welcome.TraceID)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Broadcast(TypeDatasetReloaded, map[string]int{"rows": 10})
	reloaded := readSent(t, client)
	assert.Equal(t, TypeDatasetReloaded, reloaded.Type)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, client.trySend([]byte("late")))
}

func TestHub_DropsSlowClient(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	defer hub.Stop()

	opts := DefaultOptions()
	opts.SendBuffer = 1
	client := NewClient(hub, NewMockConnection(), newFakeDashboard(), decodeWire, opts, "", logger)
	hub.Register(client)
	// The welcome message fills the buffer
	require.Eventually(t, func() bool { return len(client.send) == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(TypeDatasetReloaded, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), hub.Stats()["dropped_clients"])
}

func TestHub_StopIsIdempotent(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	hub.Start()

	client := newTestClient(t, hub, NewMockConnection())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()
	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, client.trySend([]byte("x")))
}

func TestClient_FilterRoundTrip(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	defer hub.Stop()

	conn := NewMockConnection()
	conn.BlockWhenDrained = true
	conn.AddReadMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`), nil)
	conn.AddReadMessage(websocket.TextMessage, []byte(`{"type":"filter","data":{"hour_min":5,"hour_max":9}}`), nil)

	client := newTestClient(t, hub, conn)
	client.Serve()

	var found Message
	require.Eventually(t, func() bool {
		for _, w := range conn.GetWrittenMessages() {
			var m Message
			if json.Unmarshal(w.Data, &m) == nil && m.Type == TypeSnapshot && m.Seq == 2 {
				found = m
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	data, ok := found.Data.(map[string]interface{})
	require.True(t, ok)
	params, ok := data["params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), params["hour_min"])
	assert.Equal(t, float64(9), params["hour_max"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_InvalidMessages(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
	}{
		{name: "not json", raw: "{", wantCode: "INVALID_MESSAGE"},
		{name: "unknown type", raw: `{"type":"subscribe"}`, wantCode: "UNKNOWN_TYPE"},
		{name: "bad filter", raw: `{"type":"filter","data":{"hour_min":"x"}}`, wantCode: "INVALID_FILTER"},
	}

	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, hub, NewMockConnection())
			client.handle(client.context(), []byte(tt.raw))

			msg := readSent(t, client)
			assert.Equal(t, TypeError, msg.Type)
			data := msg.Data.(map[string]interface{})
			assert.Equal(t, tt.wantCode, data["code"])
		})
	}
}
