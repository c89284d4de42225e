package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apierrors "bikepulse/internal/errors"
)

// ValidationPolicy decides what happens when a loaded table fails Validate.
type ValidationPolicy string

const (
	// PolicyWarn logs validation issues and keeps the table
	PolicyWarn ValidationPolicy = "warn"
	// PolicyReject turns validation issues into a load error
	PolicyReject ValidationPolicy = "reject"
)

// Options configures Load
type Options struct {
	// Sheet selects the worksheet of an XLSX source. Empty means the first sheet.
	Sheet  string
	Policy ValidationPolicy
	Logger *slog.Logger
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
}

// Load reads the dataset at path into a Table. Every failure is reported
// as a load error carrying the path and, for cell errors, the row and column.
func Load(ctx context.Context, path string, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "dataset_loader"), slog.String("path", path))
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, apierrors.NewLoadError("dataset file not accessible", err).
			WithContext("path", path)
	}

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path, opts.Sheet)
	default:
		return nil, apierrors.NewLoadError(fmt.Sprintf("unsupported dataset format %q", filepath.Ext(path)), nil).
			WithContext("path", path)
	}
	if err != nil {
		return nil, apierrors.NewLoadError("failed to read dataset", err).WithContext("path", path)
	}

	if len(records) < 2 {
		return nil, apierrors.NewLoadError("dataset has no data rows", nil).WithContext("path", path)
	}

	rows, err := ParseRecords(ctx, records)
	if err != nil {
		return nil, err
	}
	// Blank lines are skipped, so a header plus empty rows parses to nothing.
	if len(rows) == 0 {
		return nil, apierrors.NewLoadError("dataset has no data rows", nil).WithContext("path", path)
	}

	table := NewTable(rows, path)

	if verr := Validate(table); verr != nil {
		if opts.Policy == PolicyReject {
			return nil, apierrors.NewLoadError("dataset failed validation", verr).WithContext("path", path)
		}
		logger.Warn("dataset validation issues",
			slog.String("error", verr.Error()),
			slog.Int("issues", IssueCount(verr)),
		)
	}

	bounds := table.Bounds()
	logger.Info("dataset loaded",
		slog.Int("rows", table.Len()),
		slog.String("min_date", bounds.Min.Format("2006-01-02")),
		slog.String("max_date", bounds.Max.Format("2006-01-02")),
		slog.Duration("duration", time.Since(start)),
	)

	return table, nil
}

// ParseRecords converts a header row plus data rows into Records.
// Columns are resolved by name, so extra columns and any column order are accepted.
func ParseRecords(ctx context.Context, records [][]string) ([]Record, error) {
	if len(records) == 0 {
		return nil, apierrors.NewLoadError("dataset has no header row", nil)
	}

	idx := indexHeader(records[0])

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apierrors.NewLoadError("required columns not found", nil).
			WithContext("missing", missing)
	}

	rows := make([]Record, 0, len(records)-1)
	for i, raw := range records[1:] {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isBlank(raw) {
			continue
		}

		rec, err := parseRow(raw, idx)
		if err != nil {
			// +2: one for the header, one for 1-based row numbers
			return nil, err.WithContext("row", i+2)
		}
		rows = append(rows, rec)
	}

	return rows, nil
}

// indexHeader maps cleaned, lowercased header names to column positions
func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		clean := strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
		clean = strings.ToLower(strings.TrimSpace(clean))
		if _, dup := idx[clean]; !dup {
			idx[clean] = i
		}
	}
	return idx
}

func parseRow(raw []string, idx map[string]int) (Record, *apierrors.AppError) {
	p := rowParser{raw: raw, idx: idx}

	rec := Record{
		RecordID:      p.intCell(ColRecordID),
		Date:          p.dateCell(ColDate),
		Hour:          p.intCell(ColHour),
		Total:         p.intCell(ColTotal),
		Casual:        p.intCell(ColCasual),
		Registered:    p.intCell(ColRegistered),
		Season:        p.intCell(ColSeason),
		Weekday:       p.intCell(ColWeekday),
		TempNorm:      p.floatCell(ColTemp),
		HumidityNorm:  p.floatCell(ColHumidity),
		WindspeedNorm: p.floatCell(ColWindspeed),
	}
	if _, ok := idx[ColDayTotal]; ok {
		rec.DayTotal = p.intCell(ColDayTotal)
	} else {
		rec.DayTotal = rec.Total
	}

	if p.err != nil {
		return Record{}, p.err
	}
	return rec, nil
}

// rowParser keeps the first cell error so parseRow reads as a flat list of fields.
type rowParser struct {
	raw []string
	idx map[string]int
	err *apierrors.AppError
}

func (p *rowParser) cell(col string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	i := p.idx[col]
	if i >= len(p.raw) {
		p.fail(col, "", fmt.Errorf("row has %d cells", len(p.raw)))
		return "", false
	}
	return strings.TrimSpace(p.raw[i]), true
}

func (p *rowParser) fail(col, value string, cause error) {
	p.err = apierrors.NewLoadError("invalid cell value", cause).
		WithContext("column", col).
		WithContext("value", value)
}

func (p *rowParser) intCell(col string) int {
	s, ok := p.cell(col)
	if !ok {
		return 0
	}
	n, err := parseInt(s)
	if err != nil {
		p.fail(col, s, err)
	}
	return n
}

func (p *rowParser) floatCell(col string) float64 {
	s, ok := p.cell(col)
	if !ok {
		return 0
	}
	f, err := parseFloat(s)
	if err != nil {
		p.fail(col, s, err)
	}
	return f
}

func (p *rowParser) dateCell(col string) time.Time {
	s, ok := p.cell(col)
	if !ok {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t)
		}
	}
	p.fail(col, s, fmt.Errorf("unrecognized date format"))
	return time.Time{}
}

func isBlank(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
