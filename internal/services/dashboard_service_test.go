package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikepulse/internal/dataset"
	"bikepulse/internal/filter"
	"bikepulse/internal/locale"
	"bikepulse/internal/shared/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, rows ...testutil.RentalRow) *DashboardService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	path := testutil.WriteRentalCSV(t, rows...)
	table, err := dataset.Load(context.Background(), path, dataset.Options{Logger: logger})
	require.NoError(t, err)
	return NewDashboardService(dataset.NewStore(table), locale.English, nil, logger)
}

func sampleRows() []testutil.RentalRow {
	return []testutil.RentalRow{
		testutil.Rental(1, "2011-01-01", 5, 10, 4),
		testutil.Rental(2, "2011-01-01", 5, 20, 5),
		testutil.Rental(3, "2011-01-01", 8, 100, 30),
		testutil.Rental(4, "2012-06-15", 17, 1500, 300),
		testutil.Rental(5, "2012-07-01", 18, 900, 100),
	}
}

func TestSnapshot_SingleHourScenario(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, err := svc.Snapshot(context.Background(), filter.Params{
		DateStart: day(2011, 1, 1), DateEnd: day(2011, 1, 1), HourMin: 5, HourMax: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Rows)
	assert.Equal(t, int64(30), snap.Summary.TotalRides)
	assert.Equal(t, "30", snap.Summary.TotalRidesText)
	require.NotNil(t, snap.Summary.BusiestHour)
	assert.Equal(t, 5, *snap.Summary.BusiestHour)
	assert.Equal(t, "5:00", snap.Summary.BusiestHourText)
	require.NotNil(t, snap.Summary.AvgTempC)
	assert.Equal(t, 20.5, *snap.Summary.AvgTempC)
	assert.Equal(t, int64(9), snap.Split.Casual)
	assert.Equal(t, int64(21), snap.Split.Registered)
	assert.False(t, snap.Empty)
	assert.Len(t, snap.Daily, 1)
	assert.Len(t, snap.Hourly, 1)
}

func TestSnapshot_Empty(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, err := svc.Snapshot(context.Background(), filter.Params{
		DateStart: day(2011, 1, 1), DateEnd: day(2011, 1, 1), HourMin: 20, HourMax: 23,
	})
	require.NoError(t, err)

	assert.True(t, snap.Empty)
	assert.Contains(t, snap.Warnings, EmptyResultWarning)
	assert.Zero(t, snap.Summary.TotalRides)
	assert.Nil(t, snap.Summary.AvgTempC)
	assert.Nil(t, snap.Summary.BusiestHour)
	assert.Equal(t, NoData, snap.Summary.BusiestHourText)
	assert.Empty(t, snap.Daily)
	assert.Empty(t, snap.Hourly)
	// Monthly ignores the user filter
	assert.NotEmpty(t, snap.Monthly)
}

func TestSnapshot_ClampsParams(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, err := svc.Snapshot(context.Background(), filter.Params{
		DateStart: day(2013, 1, 1), DateEnd: day(2000, 1, 1), HourMin: 30, HourMax: -4,
	})
	require.NoError(t, err)

	assert.Equal(t, day(2011, 1, 1), snap.Params.DateStart)
	assert.Equal(t, day(2012, 7, 1), snap.Params.DateEnd)
	assert.Equal(t, 0, snap.Params.HourMin)
	assert.Equal(t, 23, snap.Params.HourMax)
	assert.Equal(t, 5, snap.Rows)
}

func TestSnapshot_RangeOutsideTable(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, err := svc.Snapshot(context.Background(), filter.Params{
		DateStart: day(2030, 1, 1), DateEnd: day(2030, 12, 31), HourMin: 0, HourMax: 23,
	})
	require.NoError(t, err)

	assert.True(t, snap.Empty)
	assert.Zero(t, snap.Rows)
	assert.Zero(t, snap.Summary.TotalRides)
	assert.Empty(t, snap.Daily)
	assert.Equal(t, day(2030, 1, 1), snap.Params.DateStart)
	assert.Equal(t, day(2030, 12, 31), snap.Params.DateEnd)
}

func TestExport_RowsMatchSnapshot(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, rows, err := svc.Export(context.Background(), filter.Params{HourMin: 5, HourMax: 8})
	require.NoError(t, err)

	require.Len(t, rows, snap.Rows)
	var total int64
	for _, r := range rows {
		total += int64(r.Total)
	}
	assert.Equal(t, snap.Summary.TotalRides, total)
	assert.Equal(t, int64(130), total)
}

func TestExport_UsesOneTable(t *testing.T) {
	svc := newTestService(t, sampleRows()...)
	logger, _ := testutil.NewTestLogger(t)
	path := testutil.WriteRentalCSV(t, testutil.Rental(1, "2013-03-03", 9, 7, 2))
	replacement, err := dataset.Load(context.Background(), path, dataset.Options{Logger: logger})
	require.NoError(t, err)

	snap, rows, err := svc.Export(context.Background(), filter.Params{})
	require.NoError(t, err)
	svc.store.Swap(replacement)

	assert.Equal(t, int64(2530), snap.Summary.TotalRides)
	assert.Len(t, rows, 5)

	snap, rows, err = svc.Export(context.Background(), filter.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), snap.Summary.TotalRides)
	require.Len(t, rows, 1)
	assert.Equal(t, 7, rows[0].Total)
}

func TestExport_NotLoaded(t *testing.T) {
	svc := NewDashboardService(dataset.NewStore(nil), nil, nil, nil)

	_, _, err := svc.Export(context.Background(), filter.Params{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
}

func TestSnapshot_MonthlyUsesLatestYear(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	snap, err := svc.Snapshot(context.Background(), filter.Params{
		DateStart: day(2011, 1, 1), DateEnd: day(2011, 12, 31), HourMin: 0, HourMax: 23,
	})
	require.NoError(t, err)

	require.Len(t, snap.Monthly, 2)
	assert.Equal(t, "June", snap.Monthly[0].Label)
	assert.Equal(t, "July", snap.Monthly[1].Label)
	assert.Equal(t, 2012, snap.Monthly[0].Month.Year())
}

func TestSnapshot_CancelledContext(t *testing.T) {
	svc := newTestService(t, sampleRows()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := svc.Snapshot(ctx, filter.Params{})
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_ConcurrentCallers(t *testing.T) {
	svc := newTestService(t, sampleRows()...)
	p := filter.Params{DateStart: day(2011, 1, 1), DateEnd: day(2012, 12, 31), HourMin: 0, HourMax: 23}

	var wg sync.WaitGroup
	results := make([]*Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Snapshot(context.Background(), p)
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}
	wg.Wait()

	for _, snap := range results {
		require.NotNil(t, snap)
		assert.Equal(t, int64(2530), snap.Summary.TotalRides)
	}
}

func TestDashboardService_NotLoaded(t *testing.T) {
	svc := NewDashboardService(dataset.NewStore(nil), nil, nil, nil)

	_, err := svc.Snapshot(context.Background(), filter.Params{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	_, err = svc.Bounds(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	_, err = svc.Weather(context.Background())
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	_, _, err = svc.Rows(context.Background(), filter.Params{})
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
}

func TestRowsAndWeather(t *testing.T) {
	svc := newTestService(t, sampleRows()...)

	rows, applied, err := svc.Rows(context.Background(), filter.Params{HourMin: 17, HourMax: 18})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, day(2011, 1, 1), applied.DateStart)

	scatter, err := svc.Weather(context.Background())
	require.NoError(t, err)
	assert.Len(t, scatter.Temp, 5)
	assert.Len(t, scatter.Humidity, 5)
	assert.Len(t, scatter.Wind, 5)
}

func TestSnapshot_FollowsStoreSwap(t *testing.T) {
	svc := newTestService(t, sampleRows()...)
	before, err := svc.Snapshot(context.Background(), filter.Params{})
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	path := testutil.WriteRentalCSV(t, testutil.Rental(1, "2013-03-03", 9, 7, 2))
	table, err := dataset.Load(context.Background(), path, dataset.Options{Logger: logger})
	require.NoError(t, err)
	svc.store.Swap(table)

	after, err := svc.Snapshot(context.Background(), filter.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(2530), before.Summary.TotalRides)
	assert.Equal(t, int64(7), after.Summary.TotalRides)
}
