package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// RentalHeader is the header row of the rental dataset in source column order
const RentalHeader = "instant_y,dteday,hr,cnt_y,casual_y,registered_y,cnt_x,season_y,weekday_y,temp_y,hum_y,windspeed_y"

// RentalRow is one fixture row of the rental dataset
type RentalRow struct {
	Instant    int
	Date       string
	Hour       int
	Total      int
	Casual     int
	Registered int
	DayTotal   int
	Season     int
	Weekday    int
	Temp       float64
	Humidity   float64
	Windspeed  float64
}

// Rental builds a consistent row: registered is derived from total and casual
// and the day total defaults to the hourly total.
func Rental(instant int, date string, hour, total, casual int) RentalRow {
	return RentalRow{
		Instant:    instant,
		Date:       date,
		Hour:       hour,
		Total:      total,
		Casual:     casual,
		Registered: total - casual,
		DayTotal:   total,
		Season:     1,
		Weekday:    6,
		Temp:       0.5,
		Humidity:   0.5,
		Windspeed:  0.2,
	}
}

// CSV renders the row in RentalHeader order
func (r RentalRow) CSV() string {
	return fmt.Sprintf("%d,%s,%d,%d,%d,%d,%d,%d,%d,%g,%g,%g",
		r.Instant, r.Date, r.Hour, r.Total, r.Casual, r.Registered, r.DayTotal,
		r.Season, r.Weekday, r.Temp, r.Humidity, r.Windspeed)
}

// RentalCSV renders a complete dataset file
func RentalCSV(rows ...RentalRow) string {
	var b strings.Builder
	b.WriteString(RentalHeader)
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(r.CSV())
		b.WriteString("\n")
	}
	return b.String()
}

// WriteRentalCSV writes rows to a temporary all_data.csv and returns its path
func WriteRentalCSV(t *testing.T, rows ...RentalRow) string {
	t.Helper()
	return WriteFile(t, "all_data.csv", RentalCSV(rows...))
}

// WriteFile writes content to name inside a per-test temporary directory
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}
