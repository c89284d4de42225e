package aggregate

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"bikepulse/internal/dataset"
	"bikepulse/internal/locale"
)

// DailyPoint is the total for one calendar date
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Total int64     `json:"total"`
}

// HourlyPoint is the mean hourly total for one hour of day
type HourlyPoint struct {
	Hour int     `json:"hour"`
	Mean float64 `json:"mean"`
}

// MonthlyPoint summarizes one calendar month
type MonthlyPoint struct {
	// Month is the last day of the month
	Month           time.Time `json:"month"`
	Label           string    `json:"label"`
	DistinctRecords int       `json:"distinct_records"`
	Total           int64     `json:"total"`
}

// DailyTrend sums totals per date, sorted by ascending date
func DailyTrend(rows []dataset.Record) []DailyPoint {
	sums := make(map[time.Time]int64)
	for _, r := range rows {
		sums[r.Date] += int64(r.Total)
	}

	points := make([]DailyPoint, 0, len(sums))
	for d, total := range sums {
		points = append(points, DailyPoint{Date: d, Total: total})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// HourlyTrend averages totals per hour of day. Hours without observations
// are omitted, so the result has at most 24 points in ascending hour order.
func HourlyTrend(rows []dataset.Record) []HourlyPoint {
	groups := hourGroups(rows)

	points := make([]HourlyPoint, 0, len(groups))
	for h, totals := range groups {
		if len(totals) == 0 {
			continue
		}
		points = append(points, HourlyPoint{Hour: h, Mean: stat.Mean(totals, nil)})
	}
	return points
}

type monthAcc struct {
	ids   map[int]struct{}
	total int64
}

// MonthlyTrend resamples the rows of one year by calendar month. It is meant
// for the base table, not the user-filtered view. Months between the first
// and last observed month that have no rows appear with zero values.
// Total sums the hourly total_count of every row in the month.
func MonthlyTrend(base []dataset.Record, year int, loc *locale.Locale) []MonthlyPoint {
	months := make(map[time.Month]*monthAcc)
	first, last := time.December+1, time.January-1

	for _, r := range base {
		if r.Date.Year() != year {
			continue
		}
		m := r.Date.Month()
		acc, ok := months[m]
		if !ok {
			acc = &monthAcc{ids: make(map[int]struct{})}
			months[m] = acc
		}
		acc.ids[r.RecordID] = struct{}{}
		acc.total += int64(r.Total)

		if m < first {
			first = m
		}
		if m > last {
			last = m
		}
	}

	if len(months) == 0 {
		return []MonthlyPoint{}
	}

	points := make([]MonthlyPoint, 0, int(last-first)+1)
	for m := first; m <= last; m++ {
		p := MonthlyPoint{
			Month: monthEnd(year, m),
			Label: loc.MonthName(m),
		}
		if acc, ok := months[m]; ok {
			p.DistinctRecords = len(acc.ids)
			p.Total = acc.total
		}
		points = append(points, p)
	}
	return points
}

func monthEnd(year int, m time.Month) time.Time {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC)
}
