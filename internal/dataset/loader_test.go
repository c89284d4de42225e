package dataset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/shared/testutil"
)

func testOptions() Options {
	return Options{
		Policy: PolicyWarn,
		Logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func TestLoad_CSV(t *testing.T) {
	path := testutil.WriteRentalCSV(t,
		testutil.Rental(1, "2011-01-01", 0, 16, 3),
		testutil.Rental(2, "2011-01-01", 1, 40, 8),
		testutil.Rental(3, "2012-12-31", 23, 12, 2),
	)

	table, err := Load(context.Background(), path, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, path, table.Source())
	assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), table.Bounds().Min)
	assert.Equal(t, time.Date(2012, 12, 31, 0, 0, 0, 0, time.UTC), table.Bounds().Max)
	assert.Equal(t, 2012, table.LatestYear())

	first := table.Rows()[0]
	assert.Equal(t, 1, first.RecordID)
	assert.Equal(t, 16, first.Total)
	assert.Equal(t, 3, first.Casual)
	assert.Equal(t, 13, first.Registered)
	assert.InDelta(t, 0.5, first.TempNorm, 1e-9)
}

func TestLoad_HeaderHandling(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, table *Table)
	}{
		{
			name: "byte order mark and extra columns",
			content: "\ufeffunnamed,instant_y,dteday,hr,cnt_y,casual_y,registered_y,season_y,weekday_y,temp_y,hum_y,windspeed_y,extra\n" +
				"0,7,2011-02-03,5,30,9,21,1,4,0.3,0.6,0.1,x\n",
			check: func(t *testing.T, table *Table) {
				require.Equal(t, 1, table.Len())
				assert.Equal(t, 7, table.Rows()[0].RecordID)
			},
		},
		{
			name: "day total falls back to hourly total",
			content: "instant_y,dteday,hr,cnt_y,casual_y,registered_y,season_y,weekday_y,temp_y,hum_y,windspeed_y\n" +
				"1,2011-02-03,5,30,9,21,1,4,0.3,0.6,0.1\n",
			check: func(t *testing.T, table *Table) {
				assert.Equal(t, 30, table.Rows()[0].DayTotal)
			},
		},
		{
			name: "mixed case headers, float hours and blank lines",
			content: "INSTANT_Y, DTEDAY ,Hr,cnt_y,casual_y,registered_y,cnt_x,season_y,weekday_y,temp_y,hum_y,windspeed_y\n" +
				"1,2011-02-03 00:00:00,5.0,30,9,21,985,1,4,0.3,0.6,0.1\n" +
				",,,,,,,,,,,\n",
			check: func(t *testing.T, table *Table) {
				require.Equal(t, 1, table.Len())
				assert.Equal(t, 5, table.Rows()[0].Hour)
				assert.Equal(t, 985, table.Rows()[0].DayTotal)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, "all_data.csv", tt.content)
			table, err := Load(context.Background(), path, testOptions())
			require.NoError(t, err)
			tt.check(t, table)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantCtx string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.csv")
			},
			wantCtx: "path",
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, "all_data.json", "{}")
			},
			wantCtx: "path",
		},
		{
			name: "header only",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, "all_data.csv", testutil.RentalHeader+"\n")
			},
			wantCtx: "path",
		},
		{
			name: "header with only blank rows",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, "all_data.csv", testutil.RentalHeader+"\n,,,,,,,,,,,\n\n,,,,,,,,,,,\n")
			},
			wantCtx: "path",
		},
		{
			name: "missing column",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, "all_data.csv", "instant_y,dteday,hr\n1,2011-01-01,0\n")
			},
			wantCtx: "missing",
		},
		{
			name: "unparseable count",
			path: func(t *testing.T) string {
				row := testutil.Rental(1, "2011-01-01", 0, 16, 3).CSV()
				bad := testutil.RentalHeader + "\n" + row + "\n2,2011-01-01,1,many,3,4,7,1,6,0.5,0.5,0.2\n"
				return testutil.WriteFile(t, "all_data.csv", bad)
			},
			wantCtx: "row",
		},
		{
			name: "unparseable date",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, "all_data.csv", testutil.RentalHeader+"\n1,yesterday,0,1,0,1,1,1,6,0.5,0.5,0.2\n")
			},
			wantCtx: "column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Load(context.Background(), tt.path(t), testOptions())
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, apierrors.IsLoadError(err), "expected load error, got %v", err)

			var appErr *apierrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Context, tt.wantCtx)
		})
	}
}

func TestLoad_ValidationPolicy(t *testing.T) {
	broken := testutil.Rental(2, "2011-01-01", 1, 40, 8)
	broken.Registered = 1 // total no longer equals casual + registered
	path := testutil.WriteRentalCSV(t, testutil.Rental(1, "2011-01-01", 0, 16, 3), broken)

	t.Run("warn keeps the table and logs", func(t *testing.T) {
		logger, handler := testutil.NewTestLogger(t)
		table, err := Load(context.Background(), path, Options{Policy: PolicyWarn, Logger: logger})
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
		testutil.AssertLogContains(t, handler, slog.LevelWarn, "dataset validation issues")
		assert.True(t, handler.ContainsAttr("issues", int64(1)))
	})

	t.Run("reject fails the load", func(t *testing.T) {
		_, err := Load(context.Background(), path, Options{Policy: PolicyReject, Logger: slog.Default()})
		require.Error(t, err)
		assert.True(t, apierrors.IsLoadError(err))
	})
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{"instant_y", "dteday", "hr", "cnt_y", "casual_y", "registered_y", "cnt_x", "season_y", "weekday_y", "temp_y", "hum_y", "windspeed_y"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []interface{}{1, "2011-03-04", 8, 100, 20, 80, 2000, 1, 5, 0.4, 0.7, 0.25}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))

	path := filepath.Join(t.TempDir(), "all_data.xlsx")
	require.NoError(t, f.SaveAs(path))

	table, err := Load(context.Background(), path, testOptions())
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	got := table.Rows()[0]
	assert.Equal(t, 8, got.Hour)
	assert.Equal(t, 100, got.Total)
	assert.Equal(t, 2000, got.DayTotal)
	assert.Equal(t, time.Date(2011, 3, 4, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestLoad_CancelledContext(t *testing.T) {
	path := testutil.WriteRentalCSV(t, testutil.Rental(1, "2011-01-01", 0, 16, 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, path, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"5.0", 5, false},
		{"-3", -3, false},
		{"5.5", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
