package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"bikepulse/internal/dataset"
	"bikepulse/internal/derive"
	"bikepulse/internal/locale"
)

// RowColumns is the column order of a row dump
var RowColumns = []string{
	"instant", "date", "hour", "total", "casual", "registered",
	"season", "season_name", "weekday", "weekday_name",
	"temp_celsius", "humidity_percent", "windspeed_kmh",
}

// NewFrame builds a DataFrame of rows with the derived display columns.
func NewFrame(rows []dataset.Record, loc *locale.Locale) dataframe.DataFrame {
	n := len(rows)
	var (
		instant    = make([]int, n)
		date       = make([]string, n)
		hour       = make([]int, n)
		total      = make([]int, n)
		casual     = make([]int, n)
		registered = make([]int, n)
		season     = make([]int, n)
		seasonName = make([]string, n)
		weekday    = make([]int, n)
		dayName    = make([]string, n)
		temp       = make([]float64, n)
		humidity   = make([]float64, n)
		wind       = make([]float64, n)
	)

	for i, r := range rows {
		d := derive.Derive(r, loc)
		instant[i] = r.RecordID
		date[i] = formatDate(r.Date)
		hour[i] = r.Hour
		total[i] = r.Total
		casual[i] = r.Casual
		registered[i] = r.Registered
		season[i] = r.Season
		seasonName[i] = d.SeasonName
		weekday[i] = r.Weekday
		dayName[i] = d.WeekdayName
		temp[i] = d.TempC
		humidity[i] = d.HumidityPct
		wind[i] = d.WindKmh
	}

	return dataframe.New(
		series.New(instant, series.Int, "instant"),
		series.New(date, series.String, "date"),
		series.New(hour, series.Int, "hour"),
		series.New(total, series.Int, "total"),
		series.New(casual, series.Int, "casual"),
		series.New(registered, series.Int, "registered"),
		series.New(season, series.Int, "season"),
		series.New(seasonName, series.String, "season_name"),
		series.New(weekday, series.Int, "weekday"),
		series.New(dayName, series.String, "weekday_name"),
		series.New(temp, series.Float, "temp_celsius"),
		series.New(humidity, series.Float, "humidity_percent"),
		series.New(wind, series.Float, "windspeed_kmh"),
	)
}

// WriteRowsCSV writes rows and their derived columns as CSV with a header
func WriteRowsCSV(w io.Writer, rows []dataset.Record, loc *locale.Locale) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, strings.Join(RowColumns, ",")+"\n")
		return err
	}
	df := NewFrame(rows, loc)
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}
	return df.WriteCSV(w)
}
