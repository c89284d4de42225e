package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"bikepulse/internal/dataset"
	"bikepulse/internal/derive"
	"bikepulse/internal/filter"
)

// NoHour is returned by BusiestHour when there is no data
const NoHour = -1

// Split is the casual versus registered breakdown
type Split struct {
	Casual     int64 `json:"casual"`
	Registered int64 `json:"registered"`
}

// Total returns casual plus registered
func (s Split) Total() int64 {
	return s.Casual + s.Registered
}

// Shares returns each category's share of the total in percent. Both are 0
// when the total is 0.
func (s Split) Shares() (casual, registered float64) {
	total := s.Total()
	if total == 0 {
		return 0, 0
	}
	return float64(s.Casual) * 100 / float64(total), float64(s.Registered) * 100 / float64(total)
}

// TotalRides sums the hourly totals
func TotalRides(rows []dataset.Record) int64 {
	var sum int64
	for _, r := range rows {
		sum += int64(r.Total)
	}
	return sum
}

// AverageTemperature returns the mean temperature in degrees Celsius rounded
// to two decimals. It returns NaN and false for empty input.
func AverageTemperature(rows []dataset.Record) (float64, bool) {
	if len(rows) == 0 {
		return math.NaN(), false
	}

	temps := make([]float64, len(rows))
	for i, r := range rows {
		temps[i] = r.TempNorm
	}
	return round2(derive.TempCelsius(stat.Mean(temps, nil))), true
}

// BusiestHour returns the hour with the highest mean total. Ties go to the
// lowest hour. It returns NoHour and false for empty input.
func BusiestHour(rows []dataset.Record) (int, bool) {
	best, bestMean := NoHour, math.Inf(-1)
	for _, p := range HourlyTrend(rows) {
		if p.Mean > bestMean {
			best, bestMean = p.Hour, p.Mean
		}
	}
	return best, best != NoHour
}

// CategorySplit sums casual and registered rentals
func CategorySplit(rows []dataset.Record) Split {
	var s Split
	for _, r := range rows {
		s.Casual += int64(r.Casual)
		s.Registered += int64(r.Registered)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// hourGroups buckets totals by hour of day, ignoring hours outside 0..23
func hourGroups(rows []dataset.Record) [filter.MaxHour + 1][]float64 {
	var groups [filter.MaxHour + 1][]float64
	for _, r := range rows {
		if r.Hour < filter.MinHour || r.Hour > filter.MaxHour {
			continue
		}
		groups[r.Hour] = append(groups[r.Hour], float64(r.Total))
	}
	return groups
}
