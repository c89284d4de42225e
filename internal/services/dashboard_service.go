package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bikepulse/internal/aggregate"
	"bikepulse/internal/dataset"
	"bikepulse/internal/derive"
	"bikepulse/internal/filter"
	"bikepulse/internal/infrastructure"
	"bikepulse/internal/locale"
)

// EmptyResultWarning is reported when a filter matches no rows
const EmptyResultWarning = "no rides match the selected filters"

// Summary holds the headline cards. Pointer fields are nil when there is no data.
type Summary struct {
	TotalRides      int64    `json:"total_rides"`
	TotalRidesText  string   `json:"total_rides_text"`
	AvgTempC        *float64 `json:"avg_temp_c"`
	AvgTempText     string   `json:"avg_temp_text"`
	BusiestHour     *int     `json:"busiest_hour"`
	BusiestHourText string   `json:"busiest_hour_text"`
}

// Snapshot is every dashboard view for one filter selection.
// Snapshots may be shared between callers and must not be modified.
type Snapshot struct {
	Params     filter.Params            `json:"params"`
	Rows       int                      `json:"rows"`
	Summary    Summary                  `json:"summary"`
	Daily      []aggregate.DailyPoint   `json:"daily"`
	Hourly     []aggregate.HourlyPoint  `json:"hourly"`
	Split      aggregate.Split          `json:"split"`
	Monthly    []aggregate.MonthlyPoint `json:"monthly"`
	Seasonal   []aggregate.SeasonStat   `json:"seasonal"`
	Pivot      aggregate.Pivot          `json:"pivot"`
	Empty      bool                     `json:"empty"`
	Warnings   []string                 `json:"warnings,omitempty"`
	ComputedAt time.Time                `json:"computed_at"`
}

// NoData is the placeholder shown in place of a missing card value
const NoData = "n/a"

// DashboardService computes dashboard snapshots from the current table
type DashboardService struct {
	store   *dataset.Store
	loc     *locale.Locale
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewDashboardService creates a dashboard service. metrics may be nil.
func NewDashboardService(store *dataset.Store, loc *locale.Locale, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = locale.English
	}
	return &DashboardService{
		store:   store,
		loc:     loc,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "dashboard_service")),
	}
}

// Locale returns the locale used for labels and number formatting
func (s *DashboardService) Locale() *locale.Locale {
	return s.loc
}

// Table returns the current table
func (s *DashboardService) Table() (*dataset.Table, error) {
	t := s.store.Current()
	if t == nil {
		return nil, ErrDatasetNotLoaded
	}
	return t, nil
}

// Bounds returns the date range of the current table
func (s *DashboardService) Bounds(ctx context.Context) (dataset.Bounds, error) {
	t, err := s.Table()
	if err != nil {
		return dataset.Bounds{}, err
	}
	return t.Bounds(), nil
}

// DefaultParams selects the whole current table
func (s *DashboardService) DefaultParams(ctx context.Context) (filter.Params, error) {
	b, err := s.Bounds(ctx)
	if err != nil {
		return filter.Params{}, err
	}
	return filter.Default(b), nil
}

// Rows returns the rows matching p after clamping, along with the applied params
func (s *DashboardService) Rows(ctx context.Context, p filter.Params) ([]dataset.Record, filter.Params, error) {
	t, err := s.Table()
	if err != nil {
		return nil, p, err
	}
	p = filter.Clamp(p, t.Bounds())
	rows := filter.Apply(t.Rows(), p)
	if err := ctx.Err(); err != nil {
		return nil, p, err
	}
	return rows, p, nil
}

// Weather returns the weather scatter over the whole table. It ignores the
// user filter.
func (s *DashboardService) Weather(ctx context.Context) (aggregate.Scatter, error) {
	t, err := s.Table()
	if err != nil {
		return aggregate.Scatter{}, err
	}
	scatter := aggregate.WeatherScatter(t.Rows())
	if err := ctx.Err(); err != nil {
		return aggregate.Scatter{}, err
	}
	return scatter, nil
}

// Snapshot clamps p and computes every dashboard view. Identical concurrent
// requests against the same table share one computation.
func (s *DashboardService) Snapshot(ctx context.Context, p filter.Params) (*Snapshot, error) {
	t, err := s.Table()
	if err != nil {
		return nil, err
	}
	return s.snapshotOf(ctx, t, p)
}

// Export returns the snapshot for p along with the filtered rows behind it.
// Both are taken from the same table, so a concurrent Store swap cannot mix
// two datasets in one export.
func (s *DashboardService) Export(ctx context.Context, p filter.Params) (*Snapshot, []dataset.Record, error) {
	t, err := s.Table()
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.snapshotOf(ctx, t, p)
	if err != nil {
		return nil, nil, err
	}
	rows := filter.Apply(t.Rows(), snap.Params)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return snap, rows, nil
}

func (s *DashboardService) snapshotOf(ctx context.Context, t *dataset.Table, p filter.Params) (*Snapshot, error) {
	p = filter.Clamp(p, t.Bounds())

	ch := s.group.DoChan(snapshotKey(t, p), func() (interface{}, error) {
		return s.compute(ctx, t, p)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// The caller that started the shared computation went away; redo it under our own context.
			if isContextErr(res.Err) && ctx.Err() == nil {
				return s.compute(ctx, t, p)
			}
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *DashboardService) compute(ctx context.Context, t *dataset.Table, p filter.Params) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordSnapshot(ctx, time.Since(start), snap != nil && snap.Empty, err)
	}()

	rows := filter.Apply(t.Rows(), p)
	snap = &Snapshot{
		Params:     p,
		Rows:       len(rows),
		ComputedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.Summary = s.summary(rows)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Daily = aggregate.DailyTrend(rows)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Hourly = aggregate.HourlyTrend(rows)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Split = aggregate.CategorySplit(rows)
		return gctx.Err()
	})
	g.Go(func() error {
		// Monthly trend always covers the latest year of the base table
		snap.Monthly = aggregate.MonthlyTrend(t.Rows(), t.LatestYear(), s.loc)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Seasonal = aggregate.SeasonalAggregate(rows, s.loc)
		return gctx.Err()
	})
	g.Go(func() error {
		snap.Pivot = aggregate.DayHourPivot(rows, s.loc)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		snap.Empty = true
		snap.Warnings = append(snap.Warnings, EmptyResultWarning)
		s.logger.InfoContext(ctx, "filter matched no rows",
			slog.Time("start", p.DateStart),
			slog.Time("end", p.DateEnd),
			slog.Int("hour_min", p.HourMin),
			slog.Int("hour_max", p.HourMax))
	}

	s.logger.DebugContext(ctx, "snapshot computed",
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)),
		slog.Int64("lookup_misses_total", derive.LookupMisses()))
	return snap, nil
}

func (s *DashboardService) summary(rows []dataset.Record) Summary {
	total := aggregate.TotalRides(rows)
	sum := Summary{
		TotalRides:      total,
		TotalRidesText:  s.loc.FormatCount(total),
		AvgTempText:     NoData,
		BusiestHourText: NoData,
	}
	if avg, ok := aggregate.AverageTemperature(rows); ok {
		sum.AvgTempC = &avg
		sum.AvgTempText = s.loc.FormatDecimal(avg) + " °C"
	}
	if hour, ok := aggregate.BusiestHour(rows); ok {
		sum.BusiestHour = &hour
		sum.BusiestHourText = locale.FormatHour(hour)
	}
	return sum
}

// snapshotKey identifies a computation by table instance and clamped params
func snapshotKey(t *dataset.Table, p filter.Params) string {
	return fmt.Sprintf("%p|%s|%s|%d|%d", t,
		p.DateStart.Format(time.DateOnly), p.DateEnd.Format(time.DateOnly), p.HourMin, p.HourMax)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
