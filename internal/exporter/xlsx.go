package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"bikepulse/internal/services"
)

// Workbook sheet names in order
const (
	SheetSummary  = "Summary"
	SheetDaily    = "Daily"
	SheetHourly   = "Hourly"
	SheetMonthly  = "Monthly"
	SheetSeasonal = "Seasonal"
	SheetPivot    = "Pivot"
)

type sheet struct {
	name string
	rows [][]interface{}
}

// WriteSnapshotXLSX writes one worksheet per dashboard view
func WriteSnapshotXLSX(w io.Writer, snap *services.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, s := range snapshotSheets(snap) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}

		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", s.name, r+1, err)
			}
		}
		if err := f.SetRowStyle(s.name, 1, 1, bold); err != nil {
			return fmt.Errorf("style %s header: %w", s.name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func snapshotSheets(snap *services.Snapshot) []sheet {
	summary := sheet{name: SheetSummary, rows: [][]interface{}{
		{"metric", "value"},
		{"total_rides", snap.Summary.TotalRides},
		{"avg_temp_celsius", optionalFloat(snap.Summary.AvgTempC)},
		{"busiest_hour", optionalInt(snap.Summary.BusiestHour)},
		{"rows", snap.Rows},
		{"start", formatDate(snap.Params.DateStart)},
		{"end", formatDate(snap.Params.DateEnd)},
		{"hour_min", snap.Params.HourMin},
		{"hour_max", snap.Params.HourMax},
	}}

	daily := sheet{name: SheetDaily, rows: [][]interface{}{{"date", "total"}}}
	for _, p := range snap.Daily {
		daily.rows = append(daily.rows, []interface{}{formatDate(p.Date), p.Total})
	}

	hourly := sheet{name: SheetHourly, rows: [][]interface{}{{"hour", "mean_total"}}}
	for _, p := range snap.Hourly {
		hourly.rows = append(hourly.rows, []interface{}{p.Hour, p.Mean})
	}

	monthly := sheet{name: SheetMonthly, rows: [][]interface{}{{"month", "label", "records", "total"}}}
	for _, p := range snap.Monthly {
		monthly.rows = append(monthly.rows, []interface{}{formatDate(p.Month), p.Label, p.DistinctRecords, p.Total})
	}

	seasonal := sheet{name: SheetSeasonal, rows: [][]interface{}{{"season", "name", "mean_total", "sum", "count"}}}
	for _, s := range snap.Seasonal {
		seasonal.rows = append(seasonal.rows, []interface{}{s.Code, s.Name, s.Mean, s.Sum, s.Count})
	}

	header := []interface{}{"hour"}
	for _, d := range snap.Pivot.Days {
		header = append(header, d)
	}
	pivot := sheet{name: SheetPivot, rows: [][]interface{}{header}}
	for i, h := range snap.Pivot.Hours {
		row := []interface{}{h}
		for _, v := range snap.Pivot.Cells[i] {
			row = append(row, optionalFloat(v))
		}
		pivot.rows = append(pivot.rows, row)
	}

	return []sheet{summary, daily, hourly, monthly, seasonal, pivot}
}

// optional values become empty cells
func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
