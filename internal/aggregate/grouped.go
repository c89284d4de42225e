package aggregate

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bikepulse/internal/dataset"
	"bikepulse/internal/derive"
	"bikepulse/internal/locale"
)

// unknownCode groups every categorical code missing from the dictionaries
const unknownCode = -1

// SeasonStat is the mean and sum of totals for one season
type SeasonStat struct {
	Code  int     `json:"code"`
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Sum   int64   `json:"sum"`
	Count int     `json:"count"`
}

// Pivot is an hour by weekday matrix of mean totals. Rows follow Hours and
// columns follow Days. A nil cell means the combination was never observed.
type Pivot struct {
	Hours    []int        `json:"hours"`
	Days     []string     `json:"days"`
	DayCodes []int        `json:"day_codes"`
	Cells    [][]*float64 `json:"cells"`
}

// Cell returns the mean for an hour and weekday code
func (p Pivot) Cell(hour, weekday int) (float64, bool) {
	row, col := -1, -1
	for i, h := range p.Hours {
		if h == hour {
			row = i
			break
		}
	}
	for j, d := range p.DayCodes {
		if d == weekday {
			col = j
			break
		}
	}
	if row < 0 || col < 0 || p.Cells[row][col] == nil {
		return 0, false
	}
	return *p.Cells[row][col], true
}

// Point is one scatter observation
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scatter pairs each derived weather reading with the hourly total
type Scatter struct {
	Temp     []Point `json:"temp_celsius"`
	Humidity []Point `json:"humidity_percent"`
	Wind     []Point `json:"windspeed_kmh"`
}

// sortCodes orders category codes ascending with unknownCode last
func sortCodes(codes []int) {
	sort.Slice(codes, func(i, j int) bool {
		if codes[i] == unknownCode || codes[j] == unknownCode {
			return codes[j] == unknownCode && codes[i] != unknownCode
		}
		return codes[i] < codes[j]
	})
}

// SeasonalAggregate groups totals by season. Seasons come out in code order
// and codes outside the dictionary are grouped under locale.Unknown last.
func SeasonalAggregate(rows []dataset.Record, loc *locale.Locale) []SeasonStat {
	groups := make(map[int][]float64)
	for _, r := range rows {
		code := r.Season
		if _, ok := loc.SeasonName(code); !ok {
			code = unknownCode
		}
		groups[code] = append(groups[code], float64(r.Total))
	}

	codes := make([]int, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sortCodes(codes)

	stats := make([]SeasonStat, 0, len(codes))
	for _, code := range codes {
		totals := groups[code]
		stats = append(stats, SeasonStat{
			Code:  code,
			Name:  derive.SeasonName(loc, code),
			Mean:  stat.Mean(totals, nil),
			Sum:   int64(floats.Sum(totals)),
			Count: len(totals),
		})
	}
	return stats
}

// DayHourPivot builds the hour by weekday matrix of mean totals. Only hours
// and weekdays that occur in rows get a row or column.
func DayHourPivot(rows []dataset.Record, loc *locale.Locale) Pivot {
	type key struct{ hour, day int }
	cells := make(map[key][]float64)
	hourSet := make(map[int]struct{})
	daySet := make(map[int]struct{})

	for _, r := range rows {
		day := r.Weekday
		if _, ok := loc.WeekdayName(day); !ok {
			day = unknownCode
		}
		k := key{r.Hour, day}
		cells[k] = append(cells[k], float64(r.Total))
		hourSet[r.Hour] = struct{}{}
		daySet[day] = struct{}{}
	}

	p := Pivot{
		Hours:    make([]int, 0, len(hourSet)),
		Days:     make([]string, 0, len(daySet)),
		DayCodes: make([]int, 0, len(daySet)),
	}
	for h := range hourSet {
		p.Hours = append(p.Hours, h)
	}
	sort.Ints(p.Hours)
	for d := range daySet {
		p.DayCodes = append(p.DayCodes, d)
	}
	sortCodes(p.DayCodes)
	for _, d := range p.DayCodes {
		p.Days = append(p.Days, derive.WeekdayName(loc, d))
	}

	p.Cells = make([][]*float64, len(p.Hours))
	for i, h := range p.Hours {
		p.Cells[i] = make([]*float64, len(p.DayCodes))
		for j, d := range p.DayCodes {
			if totals, ok := cells[key{h, d}]; ok {
				mean := stat.Mean(totals, nil)
				p.Cells[i][j] = &mean
			}
		}
	}
	return p
}

// WeatherScatter pairs derived weather readings with totals. The dashboard
// plots it over the full base table.
func WeatherScatter(rows []dataset.Record) Scatter {
	s := Scatter{
		Temp:     make([]Point, len(rows)),
		Humidity: make([]Point, len(rows)),
		Wind:     make([]Point, len(rows)),
	}
	for i, r := range rows {
		y := float64(r.Total)
		s.Temp[i] = Point{X: derive.TempCelsius(r.TempNorm), Y: y}
		s.Humidity[i] = Point{X: derive.HumidityPercent(r.HumidityNorm), Y: y}
		s.Wind[i] = Point{X: derive.WindspeedKmh(r.WindspeedNorm), Y: y}
	}
	return s
}
