package charts

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"bikepulse/internal/aggregate"
	"bikepulse/internal/locale"
)

const (
	pngWidth  = 1024
	pngHeight = 400
)

var seriesColor = drawing.Color{R: 33, G: 113, B: 181, A: 255}

func baseChart(title string, empty bool) chart.Chart {
	if empty {
		title += " (" + NoDataTitle + ")"
	}
	return chart.Chart{
		Title: title,
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: drawing.ColorBlack,
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Width:  pngWidth,
		Height: pngHeight,
	}
}

func yRange(max float64) *chart.ContinuousRange {
	if max <= 0 {
		max = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: math.Ceil(max * 1.1)}
}

// placeholder gives go-chart a drawable series when there is no data
func placeholder() chart.Series {
	return chart.ContinuousSeries{
		Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
		XValues: []float64{0, 1},
		YValues: []float64{0, 0},
	}
}

// RenderDailyPNG draws the daily trend as a PNG
func RenderDailyPNG(w io.Writer, points []aggregate.DailyPoint) error {
	graph := baseChart("Daily rentals", len(points) == 0)
	graph.YAxis = chart.YAxis{Name: "Rides"}
	graph.XAxis = chart.XAxis{
		Name:           "Date",
		ValueFormatter: chart.TimeDateValueFormatter,
	}

	if len(points) == 0 {
		graph.YAxis.Range = yRange(0)
		graph.Series = []chart.Series{placeholder()}
		return render(w, graph)
	}

	xs := make([]time.Time, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	var max float64
	for _, p := range points {
		xs = append(xs, p.Date)
		ys = append(ys, float64(p.Total))
		max = math.Max(max, float64(p.Total))
	}
	// a single day still needs two x values to form a range
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}

	graph.YAxis.Range = yRange(max)
	graph.Series = []chart.Series{
		chart.TimeSeries{
			Name: "Total",
			Style: chart.Style{
				StrokeColor: seriesColor,
				StrokeWidth: 2,
			},
			XValues: xs,
			YValues: ys,
		},
	}
	return render(w, graph)
}

// RenderHourlyPNG draws the mean rentals per hour as a PNG
func RenderHourlyPNG(w io.Writer, points []aggregate.HourlyPoint) error {
	graph := baseChart("Average rentals by hour", len(points) == 0)
	graph.YAxis = chart.YAxis{Name: "Rides"}
	graph.XAxis = chart.XAxis{
		Name: "Hour",
		ValueFormatter: func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return locale.FormatHour(int(f))
			}
			return ""
		},
	}

	if len(points) == 0 {
		graph.YAxis.Range = yRange(0)
		graph.Series = []chart.Series{placeholder()}
		return render(w, graph)
	}

	xs := make([]float64, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	var max float64
	for _, p := range points {
		xs = append(xs, float64(p.Hour))
		ys = append(ys, p.Mean)
		max = math.Max(max, p.Mean)
		graph.XAxis.Ticks = append(graph.XAxis.Ticks, chart.Tick{
			Value: float64(p.Hour),
			Label: locale.FormatHour(p.Hour),
		})
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
		graph.XAxis.Ticks = append(graph.XAxis.Ticks, chart.Tick{Value: xs[1]})
	}

	graph.YAxis.Range = yRange(max)
	graph.Series = []chart.Series{
		chart.ContinuousSeries{
			Name: "Mean",
			Style: chart.Style{
				StrokeColor: seriesColor,
				StrokeWidth: 2,
				DotColor:    seriesColor,
				DotWidth:    3,
			},
			XValues: xs,
			YValues: ys,
		},
	}
	return render(w, graph)
}

func render(w io.Writer, graph chart.Chart) error {
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %q: %w", graph.Title, err)
	}
	return nil
}
