package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"

	"bikepulse/internal/services"
)

// Job is one scheduled run
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron spec. A run that fires while the previous
// one is still going is skipped.
type Scheduler struct {
	spec    string
	job     Job
	cron    *cron.Cron
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	running atomic.Bool
	runs    atomic.Int64
}

// NewScheduler validates spec and registers job. Specs follow robfig/cron,
// including descriptors such as "@daily" and "@every 1h".
func NewScheduler(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		spec:   spec,
		job:    job,
		cron:   cron.New(),
		logger: logger.With(slog.String("component", "export_scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.cron.AddFunc(spec, s.fire); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid export schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("export scheduler started", slog.String("schedule", s.spec))
}

// Stop halts scheduling, cancels a running job and waits for it
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("export scheduler stopped", slog.Int64("runs", s.runs.Load()))
}

// Runs returns how many jobs have completed
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *Scheduler) fire() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous export still running, skipping")
		return
	}
	defer s.running.Store(false)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	start := time.Now()
	err := s.job(s.ctx)
	s.runs.Add(1)
	if err != nil {
		s.logger.Error("scheduled export failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Info("scheduled export finished", slog.Duration("duration", time.Since(start)))
}

// SnapshotJob exports the full-range snapshot of the current table
func SnapshotJob(dash *services.DashboardService, exp *Exporter, formats []Format) Job {
	return func(ctx context.Context) error {
		p, err := dash.DefaultParams(ctx)
		if err != nil {
			return err
		}
		snap, rows, err := dash.Export(ctx, p)
		if err != nil {
			return err
		}
		_, err = exp.ExportAll(ctx, Bundle{Snapshot: snap, Rows: rows, Locale: dash.Locale()}, formats)
		return err
	}
}
