package dataset

import "time"

// Source column names
const (
	ColRecordID   = "instant_y"
	ColDate       = "dteday"
	ColHour       = "hr"
	ColTotal      = "cnt_y"
	ColCasual     = "casual_y"
	ColRegistered = "registered_y"
	ColDayTotal   = "cnt_x"
	ColSeason     = "season_y"
	ColWeekday    = "weekday_y"
	ColTemp       = "temp_y"
	ColHumidity   = "hum_y"
	ColWindspeed  = "windspeed_y"
)

// RequiredColumns lists the columns every dataset must provide.
// ColDayTotal is optional and falls back to ColTotal.
var RequiredColumns = []string{
	ColRecordID,
	ColDate,
	ColHour,
	ColTotal,
	ColCasual,
	ColRegistered,
	ColSeason,
	ColWeekday,
	ColTemp,
	ColHumidity,
	ColWindspeed,
}

// Record is one hourly rental bucket.
type Record struct {
	RecordID   int       `json:"instant"`
	Date       time.Time `json:"date"`
	Hour       int       `json:"hour"`
	Total      int       `json:"total"`
	Casual     int       `json:"casual"`
	Registered int       `json:"registered"`
	// DayTotal is the day-level rental count joined onto every hour of that day.
	DayTotal int `json:"day_total"`
	Season   int `json:"season"`
	Weekday  int `json:"weekday"`

	// Normalized weather readings in [0,1]
	TempNorm      float64 `json:"temp"`
	HumidityNorm  float64 `json:"humidity"`
	WindspeedNorm float64 `json:"windspeed"`
}

// DateOnly truncates t to a calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
