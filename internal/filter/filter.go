// Package filter selects the rows of the base table that fall inside the
// user's date range and hour-of-day range.
package filter

import (
	"time"

	"bikepulse/internal/dataset"
)

// Hour range limits
const (
	MinHour = 0
	MaxHour = 23
)

// Params is the user's filter selection. Both ranges are inclusive.
type Params struct {
	DateStart time.Time `json:"start"`
	DateEnd   time.Time `json:"end"`
	HourMin   int       `json:"hour_min"`
	HourMax   int       `json:"hour_max"`
}

// Default selects the whole table: every date and every hour.
func Default(b dataset.Bounds) Params {
	return Params{
		DateStart: b.Min,
		DateEnd:   b.Max,
		HourMin:   MinHour,
		HourMax:   MaxHour,
	}
}

// Clamp normalizes p against the table bounds. Dates are truncated to
// calendar days, reversed ranges are swapped and zero dates take the matching
// bound. The date range is then intersected with [b.Min, b.Max]. A range that
// does not overlap the table is kept as given so it still matches no rows;
// it is never pinned to a boundary day. Hours are clamped into [0, 23].
func Clamp(p Params, b dataset.Bounds) Params {
	if p.DateStart.IsZero() {
		p.DateStart = b.Min
	}
	if p.DateEnd.IsZero() {
		p.DateEnd = b.Max
	}

	p.DateStart = dataset.DateOnly(p.DateStart)
	p.DateEnd = dataset.DateOnly(p.DateEnd)
	if p.DateEnd.Before(p.DateStart) {
		p.DateStart, p.DateEnd = p.DateEnd, p.DateStart
	}
	if !b.IsZero() && Overlaps(p, b) {
		if p.DateStart.Before(b.Min) {
			p.DateStart = b.Min
		}
		if p.DateEnd.After(b.Max) {
			p.DateEnd = b.Max
		}
	}

	p.HourMin = clampHour(p.HourMin)
	p.HourMax = clampHour(p.HourMax)
	if p.HourMax < p.HourMin {
		p.HourMin, p.HourMax = p.HourMax, p.HourMin
	}
	return p
}

// Overlaps reports whether the date range of p shares at least one day with b
func Overlaps(p Params, b dataset.Bounds) bool {
	return !p.DateEnd.Before(b.Min) && !p.DateStart.After(b.Max)
}

func clampHour(h int) int {
	if h < MinHour {
		return MinHour
	}
	if h > MaxHour {
		return MaxHour
	}
	return h
}

// Matches reports whether r falls inside both ranges of p
func Matches(r dataset.Record, p Params) bool {
	return !r.Date.Before(p.DateStart) &&
		!r.Date.After(p.DateEnd) &&
		r.Hour >= p.HourMin &&
		r.Hour <= p.HourMax
}

// Apply returns the matching rows in their original order. Params are used
// as given; callers that need bounds enforced call Clamp first. The result
// may be empty.
func Apply(rows []dataset.Record, p Params) []dataset.Record {
	out := make([]dataset.Record, 0, len(rows)/4)
	for _, r := range rows {
		if Matches(r, p) {
			out = append(out, r)
		}
	}
	return out
}
