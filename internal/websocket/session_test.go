package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikepulse/internal/filter"
	"bikepulse/internal/services"
	"bikepulse/internal/shared/testutil"
)

// fakeDashboard returns a snapshot echoing the params. Calls whose HourMin has
// a gate wait for it; with ignoreCtx they keep waiting after cancellation.
type fakeDashboard struct {
	mu        sync.Mutex
	gates     map[int]chan struct{}
	ignoreCtx bool
	err       error
}

func newFakeDashboard() *fakeDashboard {
	return &fakeDashboard{gates: make(map[int]chan struct{})}
}

func (f *fakeDashboard) gate(hour int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[hour] = ch
	return ch
}

func (f *fakeDashboard) Snapshot(ctx context.Context, p filter.Params) (*services.Snapshot, error) {
	f.mu.Lock()
	ch := f.gates[p.HourMin]
	f.mu.Unlock()

	if ch != nil {
		if f.ignoreCtx {
			<-ch
		} else {
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.Snapshot{Params: p}, nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) deliver(m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return true
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func TestSession_NewerFilterSupersedesOlder(t *testing.T) {
	tests := []struct {
		name      string
		ignoreCtx bool
	}{
		{name: "older computation observes cancellation", ignoreCtx: false},
		{name: "older result arrives late and is dropped", ignoreCtx: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			dash := newFakeDashboard()
			dash.ignoreCtx = tt.ignoreCtx
			slow := dash.gate(1)
			rec := &recorder{}

			s := NewSession(context.Background(), dash, rec.deliver, nil, logger)

			first := s.Submit(filter.Params{HourMin: 1, HourMax: 23})
			second := s.Submit(filter.Params{HourMin: 2, HourMax: 23})
			require.Greater(t, second, first)

			require.Eventually(t, func() bool { return len(rec.messages()) == 1 }, time.Second, 5*time.Millisecond)

			// Let the superseded computation finish
			close(slow)
			s.Close()

			msgs := rec.messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, TypeSnapshot, msgs[0].Type)
			assert.Equal(t, second, msgs[0].Seq)
			snap, ok := msgs[0].Data.(*services.Snapshot)
			require.True(t, ok)
			assert.Equal(t, 2, snap.Params.HourMin)
		})
	}
}

func TestSession_ErrorMessage(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dash := newFakeDashboard()
	dash.err = services.ErrDatasetNotLoaded
	rec := &recorder{}

	s := NewSession(context.Background(), dash, rec.deliver, nil, logger)
	seq := s.Submit(filter.Params{})

	require.Eventually(t, func() bool { return len(rec.messages()) == 1 }, time.Second, 5*time.Millisecond)
	s.Close()

	msg := rec.messages()[0]
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, seq, msg.Seq)
	assert.Equal(t, "DATASET_UNAVAILABLE", msg.Data.(ErrorData).Code)
}

func TestSession_CloseSuppressesDelivery(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dash := newFakeDashboard()
	dash.gate(3)
	rec := &recorder{}

	s := NewSession(context.Background(), dash, rec.deliver, nil, logger)
	s.Submit(filter.Params{HourMin: 3})
	s.Close()

	assert.Empty(t, rec.messages())
}

func TestMessageJSON(t *testing.T) {
	b, err := json.Marshal(newMessage(TypeSnapshot, 7, map[string]int{"rows": 3}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "snapshot", decoded["type"])
	assert.Equal(t, float64(7), decoded["seq"])
	assert.NotEmpty(t, decoded["timestamp"])
}
