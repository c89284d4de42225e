package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"bikepulse/internal/charts"
	"bikepulse/internal/dataset"
	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/infrastructure"
	"bikepulse/internal/locale"
	"bikepulse/internal/services"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPNG  Format = "png"
)

// AllFormats lists every supported format
var AllFormats = []Format{FormatCSV, FormatXLSX, FormatPNG}

// ParseFormat accepts a case-insensitive format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatXLSX, FormatPNG:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ParseFormats parses a list of names; "all" expands to AllFormats
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), "all") {
			return AllFormats, nil
		}
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// ContentType returns the MIME type of a format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPNG:
		return "image/png"
	}
	return "application/octet-stream"
}

// Bundle is the data behind one export
type Bundle struct {
	Snapshot *services.Snapshot
	Rows     []dataset.Record
	Locale   *locale.Locale
}

// BaseName names export files after the filter selection
func (b Bundle) BaseName() string {
	p := b.Snapshot.Params
	return fmt.Sprintf("rides_%s_%s_h%02d-%02d",
		p.DateStart.Format("20060102"), p.DateEnd.Format("20060102"), p.HourMin, p.HourMax)
}

// Write streams a single-file rendition of the bundle. PNG is the daily trend.
func Write(w io.Writer, f Format, b Bundle) error {
	switch f {
	case FormatCSV:
		return WriteRowsCSV(w, b.Rows, b.Locale)
	case FormatXLSX:
		return WriteSnapshotXLSX(w, b.Snapshot)
	case FormatPNG:
		return charts.RenderDailyPNG(w, b.Snapshot.Daily)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// Exporter writes bundles to a directory
type Exporter struct {
	dir     string
	csv     *CSVWriter
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// New creates an exporter writing under dir. metrics may be nil.
func New(dir string, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		dir:     dir,
		csv:     NewCSVWriter(dir, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// Dir returns the output directory
func (e *Exporter) Dir() string {
	return e.dir
}

// ExportAll writes every requested format concurrently. Paths are returned
// in the order of formats.
func (e *Exporter) ExportAll(ctx context.Context, b Bundle, formats []Format) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, apierrors.NewExportError("create export directory", err)
	}

	base := b.BaseName()
	var (
		mu      sync.Mutex
		written = make(map[Format][]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range formats {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			paths, err := e.export(f, base, b)
			e.metrics.RecordExport(gctx, string(f), err)
			if err != nil {
				return apierrors.NewExportError(fmt.Sprintf("export %s", f), err).
					WithContext("format", string(f))
			}
			mu.Lock()
			written[f] = paths
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("export failed", slog.String("error", err.Error()))
		return nil, err
	}

	var out []string
	for _, f := range formats {
		out = append(out, written[f]...)
	}
	e.logger.Info("export completed",
		slog.String("dir", e.dir),
		slog.Int("files", len(out)),
		slog.Int("rows", len(b.Rows)))
	return out, nil
}

func (e *Exporter) export(f Format, base string, b Bundle) ([]string, error) {
	switch f {
	case FormatCSV:
		rows := base + ".csv"
		if err := e.writeFile(rows, func(w io.Writer) error {
			if _, err := w.Write(utf8BOM); err != nil {
				return err
			}
			return WriteRowsCSV(w, b.Rows, b.Locale)
		}); err != nil {
			return nil, err
		}
		daily := base + "_daily.csv"
		if err := e.csv.WriteSimpleCSV(daily, []string{"date", "total"}, dailyRecords(b.Snapshot)); err != nil {
			return nil, err
		}
		hourly := base + "_hourly.csv"
		if err := e.csv.WriteSimpleCSV(hourly, []string{"hour", "mean_total"}, hourlyRecords(b.Snapshot)); err != nil {
			return nil, err
		}
		return e.paths(rows, daily, hourly), nil

	case FormatXLSX:
		name := base + ".xlsx"
		if err := e.writeFile(name, func(w io.Writer) error {
			return WriteSnapshotXLSX(w, b.Snapshot)
		}); err != nil {
			return nil, err
		}
		return e.paths(name), nil

	case FormatPNG:
		daily := base + "_daily.png"
		if err := e.writeFile(daily, func(w io.Writer) error {
			return charts.RenderDailyPNG(w, b.Snapshot.Daily)
		}); err != nil {
			return nil, err
		}
		hourly := base + "_hourly.png"
		if err := e.writeFile(hourly, func(w io.Writer) error {
			return charts.RenderHourlyPNG(w, b.Snapshot.Hourly)
		}); err != nil {
			return nil, err
		}
		return e.paths(daily, hourly), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

func (e *Exporter) writeFile(name string, fn func(io.Writer) error) error {
	file, err := os.Create(filepath.Join(e.dir, name))
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (e *Exporter) paths(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(e.dir, n)
	}
	return out
}

func dailyRecords(s *services.Snapshot) [][]string {
	out := make([][]string, len(s.Daily))
	for i, p := range s.Daily {
		out[i] = []string{formatDate(p.Date), formatInt(p.Total)}
	}
	return out
}

func hourlyRecords(s *services.Snapshot) [][]string {
	out := make([][]string, len(s.Hourly))
	for i, p := range s.Hourly {
		out[i] = []string{formatInt(int64(p.Hour)), formatFloat(p.Mean)}
	}
	return out
}
