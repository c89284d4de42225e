// Command bikereport computes one dashboard snapshot from the command line,
// prints the headline cards and writes the requested exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bikepulse/internal/config"
	"bikepulse/internal/dataset"
	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/exporter"
	"bikepulse/internal/filter"
	"bikepulse/internal/infrastructure"
	"bikepulse/internal/locale"
	"bikepulse/internal/services"
)

type options struct {
	data       string
	sheet      string
	start      string
	end        string
	hourMin    int
	hourMax    int
	out        string
	locale     string
	format     string
	validation string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		logger.Error("Report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// parseFlags reads flags on top of the configured defaults
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("bikereport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.data, "data", cfg.Dataset.Path, "dataset file (CSV or XLSX)")
	fs.StringVar(&o.sheet, "sheet", cfg.Dataset.Sheet, "worksheet of an XLSX dataset")
	fs.StringVar(&o.start, "start", "", "first date YYYY-MM-DD (defaults to the earliest date)")
	fs.StringVar(&o.end, "end", "", "last date YYYY-MM-DD (defaults to the latest date)")
	fs.IntVar(&o.hourMin, "hour-min", filter.MinHour, "first hour of day (0-23)")
	fs.IntVar(&o.hourMax, "hour-max", filter.MaxHour, "last hour of day (0-23)")
	fs.StringVar(&o.out, "out", cfg.Export.Dir, "output directory")
	fs.StringVar(&o.locale, "locale", cfg.Dataset.Locale, "label locale (en, id)")
	fs.StringVar(&o.format, "format", "all", "export formats: csv, xlsx, png, all or a comma separated list")
	fs.StringVar(&o.validation, "validation", cfg.Dataset.Validation, "validation policy: warn or reject")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

// params turns the flag values into filter params. Reversed ranges are left
// for filter.Clamp to swap.
func (o options) params() (filter.Params, error) {
	var p filter.Params
	for _, h := range []struct {
		name  string
		value int
	}{{"hour-min", o.hourMin}, {"hour-max", o.hourMax}} {
		if h.value < filter.MinHour || h.value > filter.MaxHour {
			return p, fmt.Errorf("-%s must be between %d and %d, got %d", h.name, filter.MinHour, filter.MaxHour, h.value)
		}
	}
	p.HourMin, p.HourMax = o.hourMin, o.hourMax

	var err error
	if p.DateStart, err = parseDate("start", o.start); err != nil {
		return p, err
	}
	if p.DateEnd, err = parseDate("end", o.end); err != nil {
		return p, err
	}
	return p, nil
}

func parseDate(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func run(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	loc, err := locale.Parse(o.locale)
	if err != nil {
		return apierrors.NewConfigError("invalid locale", err)
	}
	formats, err := exporter.ParseFormats(strings.Split(o.format, ","))
	if err != nil {
		return err
	}
	params, err := o.params()
	if err != nil {
		return err
	}

	table, err := dataset.Load(ctx, o.data, dataset.Options{
		Sheet:  o.sheet,
		Policy: dataset.ValidationPolicy(o.validation),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	dash := services.NewDashboardService(dataset.NewStore(table), loc, nil, logger)
	snap, rows, err := dash.Export(ctx, params)
	if err != nil {
		return err
	}

	printSummary(stdout, snap)

	paths, err := exporter.New(o.out, nil, logger).ExportAll(ctx, exporter.Bundle{
		Snapshot: snap,
		Rows:     rows,
		Locale:   loc,
	}, formats)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}
	return nil
}

func printSummary(w io.Writer, snap *services.Snapshot) {
	p := snap.Params
	fmt.Fprintf(w, "Selection:           %s to %s, hours %d-%d\n",
		p.DateStart.Format(time.DateOnly), p.DateEnd.Format(time.DateOnly), p.HourMin, p.HourMax)
	fmt.Fprintf(w, "Total rides:         %s\n", snap.Summary.TotalRidesText)
	fmt.Fprintf(w, "Average temperature: %s\n", snap.Summary.AvgTempText)
	fmt.Fprintf(w, "Busiest hour:        %s\n", snap.Summary.BusiestHourText)
	for _, warning := range snap.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
