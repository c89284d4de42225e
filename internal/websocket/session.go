package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bikepulse/internal/filter"
	"bikepulse/internal/infrastructure"
	"bikepulse/internal/services"
)

// Session runs snapshot recomputations for one client. At most one
// computation is current: a newer Submit cancels the older one and any
// result that arrives for a superseded sequence number is dropped.
type Session struct {
	dashboard Dashboard
	deliver   func(Message) bool
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session whose computations inherit parent's values
// and stop when parent is cancelled or Close is called.
func NewSession(parent context.Context, dashboard Dashboard, deliver func(Message) bool, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Session {
	if metrics == nil {
		metrics = infrastructure.NoopBusinessMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(parent)
	return &Session{
		dashboard: dashboard,
		deliver:   deliver,
		metrics:   metrics,
		logger:    logger,
		ctx:       ctx,
		stop:      stop,
	}
}

// Submit starts a recomputation for p and returns its sequence number
func (s *Session) Submit(p filter.Params) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.metrics.SupersededRequests.Add(s.ctx, 1)
		s.logger.DebugContext(s.ctx, "recomputation superseded", slog.Uint64("seq", s.seq))
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		snap, err := s.dashboard.Snapshot(ctx, p)
		s.complete(seq, snap, err)
	}()
	return seq
}

func (s *Session) complete(seq uint64, snap *services.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		s.logger.DebugContext(s.ctx, "dropping stale result",
			slog.Uint64("seq", seq),
			slog.Uint64("current_seq", s.seq))
		return
	}
	s.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		code := "SNAPSHOT_FAILED"
		if errors.Is(err, services.ErrDatasetNotLoaded) {
			code = "DATASET_UNAVAILABLE"
		}
		s.logger.ErrorContext(s.ctx, "snapshot failed",
			slog.Uint64("seq", seq),
			slog.String("error", err.Error()))
		s.deliver(newMessage(TypeError, seq, ErrorData{Code: code, Message: err.Error()}))
		return
	}

	if !s.deliver(newMessage(TypeSnapshot, seq, snap)) {
		s.logger.WarnContext(s.ctx, "snapshot not delivered", slog.Uint64("seq", seq))
	}
}

// Seq returns the sequence number of the latest submission
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close cancels any running computation and waits for it to finish.
// No message is delivered after Close returns.
func (s *Session) Close() {
	s.stop()
	s.mu.Lock()
	// Bump seq so results racing with Close are treated as stale
	s.seq++
	s.cancel = nil
	s.mu.Unlock()
	s.wg.Wait()
}
