// Package derive computes unit-converted weather readings and localized
// category labels from raw rental records.
package derive

import (
	"sync/atomic"

	"bikepulse/internal/dataset"
	"bikepulse/internal/locale"
)

// Scale factors that undo the dataset normalization
const (
	TempScale      = 41.0
	HumidityScale  = 100.0
	WindspeedScale = 67.0
)

// Derived holds the display fields of one record
type Derived struct {
	TempC       float64 `json:"temp_celsius"`
	HumidityPct float64 `json:"humidity_percent"`
	WindKmh     float64 `json:"windspeed_kmh"`
	SeasonName  string  `json:"season_name"`
	WeekdayName string  `json:"weekday_name"`
}

var lookupMisses atomic.Int64

// TempCelsius converts a normalized temperature to degrees Celsius
func TempCelsius(norm float64) float64 { return norm * TempScale }

// HumidityPercent converts normalized humidity to percent
func HumidityPercent(norm float64) float64 { return norm * HumidityScale }

// WindspeedKmh converts normalized windspeed to km/h
func WindspeedKmh(norm float64) float64 { return norm * WindspeedScale }

// SeasonName returns the localized season label, or locale.Unknown
func SeasonName(loc *locale.Locale, code int) string {
	name, ok := loc.SeasonName(code)
	if !ok {
		lookupMisses.Add(1)
	}
	return name
}

// WeekdayName returns the localized weekday label, or locale.Unknown
func WeekdayName(loc *locale.Locale, code int) string {
	name, ok := loc.WeekdayName(code)
	if !ok {
		lookupMisses.Add(1)
	}
	return name
}

// Derive computes every display field of r. It is a pure function of its inputs
// apart from the lookup miss counter.
func Derive(r dataset.Record, loc *locale.Locale) Derived {
	return Derived{
		TempC:       TempCelsius(r.TempNorm),
		HumidityPct: HumidityPercent(r.HumidityNorm),
		WindKmh:     WindspeedKmh(r.WindspeedNorm),
		SeasonName:  SeasonName(loc, r.Season),
		WeekdayName: WeekdayName(loc, r.Weekday),
	}
}

// DeriveAll maps Derive over rows
func DeriveAll(rows []dataset.Record, loc *locale.Locale) []Derived {
	out := make([]Derived, len(rows))
	for i, r := range rows {
		out[i] = Derive(r, loc)
	}
	return out
}

// LookupMisses returns how many label lookups fell back to locale.Unknown
// since process start.
func LookupMisses() int64 {
	return lookupMisses.Load()
}
