package dataset

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// maxListedIssues caps how many row issues Validate collects individually
const maxListedIssues = 50

// RowIssue describes one record that violates a dataset invariant
type RowIssue struct {
	Index    int
	RecordID int
	Field    string
	Message  string
}

func (i *RowIssue) Error() string {
	return fmt.Sprintf("row %d (instant %d): %s: %s", i.Index, i.RecordID, i.Field, i.Message)
}

// truncatedIssues stands in for the issues past maxListedIssues
type truncatedIssues struct {
	n int
}

func (t *truncatedIssues) Error() string {
	return fmt.Sprintf("%d more issues not listed", t.n)
}

// Validate checks every record against the dataset invariants:
// total equals casual plus registered, counts are non-negative,
// hours and categorical codes are in range and weather readings are normalized.
// It returns nil or a *multierror.Error of *RowIssue values.
func Validate(t *Table) error {
	var result *multierror.Error
	extra := 0

	for i, r := range t.Rows() {
		for _, issue := range checkRecord(i, r) {
			if result != nil && len(result.Errors) >= maxListedIssues {
				extra++
				continue
			}
			result = multierror.Append(result, issue)
		}
	}

	if extra > 0 {
		result = multierror.Append(result, &truncatedIssues{n: extra})
	}
	return result.ErrorOrNil()
}

// IssueCount returns the total number of issues in an error returned by Validate
func IssueCount(err error) int {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		if err == nil {
			return 0
		}
		return 1
	}

	n := 0
	for _, e := range merr.Errors {
		var tr *truncatedIssues
		if errors.As(e, &tr) {
			n += tr.n
			continue
		}
		n++
	}
	return n
}

func checkRecord(i int, r Record) []*RowIssue {
	var issues []*RowIssue
	add := func(field, format string, args ...any) {
		issues = append(issues, &RowIssue{
			Index:    i,
			RecordID: r.RecordID,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if r.Hour < 0 || r.Hour > 23 {
		add(ColHour, "hour %d outside 0..23", r.Hour)
	}
	if r.Total < 0 || r.Casual < 0 || r.Registered < 0 {
		add(ColTotal, "negative count (total=%d casual=%d registered=%d)", r.Total, r.Casual, r.Registered)
	}
	if r.Total != r.Casual+r.Registered {
		add(ColTotal, "total %d != casual %d + registered %d", r.Total, r.Casual, r.Registered)
	}
	if r.Season < 1 || r.Season > 4 {
		add(ColSeason, "season code %d outside 1..4", r.Season)
	}
	if r.Weekday < 0 || r.Weekday > 6 {
		add(ColWeekday, "weekday code %d outside 0..6", r.Weekday)
	}
	for _, w := range []struct {
		col string
		v   float64
	}{
		{ColTemp, r.TempNorm},
		{ColHumidity, r.HumidityNorm},
		{ColWindspeed, r.WindspeedNorm},
	} {
		if w.v < 0 || w.v > 1 {
			add(w.col, "normalized value %.4f outside [0,1]", w.v)
		}
	}

	return issues
}
