package dataset

import "time"

// Bounds is the observed date range of a table, inclusive on both ends.
type Bounds struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Contains reports whether d falls within the bounds
func (b Bounds) Contains(d time.Time) bool {
	return !d.Before(b.Min) && !d.After(b.Max)
}

// IsZero reports whether the bounds were computed from an empty table
func (b Bounds) IsZero() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// Table is the immutable base table.
type Table struct {
	rows     []Record
	bounds   Bounds
	source   string
	loadedAt time.Time
}

// NewTable copies rows into a new Table and computes its date bounds.
func NewTable(rows []Record, source string) *Table {
	cp := make([]Record, len(rows))
	copy(cp, rows)

	t := &Table{
		rows:     cp,
		source:   source,
		loadedAt: time.Now(),
	}

	for i := range cp {
		cp[i].Date = DateOnly(cp[i].Date)
		d := cp[i].Date
		if i == 0 || d.Before(t.bounds.Min) {
			t.bounds.Min = d
		}
		if i == 0 || d.After(t.bounds.Max) {
			t.bounds.Max = d
		}
	}

	return t
}

// Rows returns the table rows. Callers must not modify the returned slice.
func (t *Table) Rows() []Record {
	return t.rows
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Bounds returns the observed min and max date
func (t *Table) Bounds() Bounds {
	return t.bounds
}

// LatestYear returns the calendar year of the latest date, or 0 for an empty table.
func (t *Table) LatestYear() int {
	if len(t.rows) == 0 {
		return 0
	}
	return t.bounds.Max.Year()
}

// Source returns the path the table was loaded from
func (t *Table) Source() string {
	return t.source
}

// LoadedAt returns the time the table was built
func (t *Table) LoadedAt() time.Time {
	return t.loadedAt
}
