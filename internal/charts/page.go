package charts

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"bikepulse/internal/aggregate"
	"bikepulse/internal/dataset"
	"bikepulse/internal/locale"
	"bikepulse/internal/services"
)

// NoDataTitle is appended to the title of a chart that has nothing to show
const NoDataTitle = "no data for the selected filters"

const (
	chartWidth  = "100%"
	chartHeight = "380px"
)

// PageData is everything the dashboard page shows
type PageData struct {
	Title    string
	Snapshot *services.Snapshot
	Weather  aggregate.Scatter
	Bounds   dataset.Bounds
}

// BuildPage assembles the dashboard charts in display order
func BuildPage(d PageData) *components.Page {
	page := components.NewPage()
	page.PageTitle = d.Title
	page.SetLayout(components.PageFlexLayout)

	snap := d.Snapshot
	page.AddCharts(
		DailyLine(snap.Daily),
		HourlyLine(snap.Hourly),
		SplitPie(snap.Split),
		MonthlyLine(snap.Monthly),
		SeasonalBar(snap.Seasonal),
		WeatherScatter("temperature", "Temperature (°C)", d.Weather.Temp),
		WeatherScatter("humidity", "Humidity (%)", d.Weather.Humidity),
		WeatherScatter("windspeed", "Wind speed (km/h)", d.Weather.Wind),
		PivotHeatMap(snap.Pivot),
	)
	return page
}

// RenderPage writes the full HTML page with the header injected after <body>
func RenderPage(w io.Writer, d PageData) error {
	var buf bytes.Buffer
	if err := BuildPage(d).Render(&buf); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}

	var header bytes.Buffer
	if err := headerTemplate.Execute(&header, newHeader(d)); err != nil {
		return fmt.Errorf("render header: %w", err)
	}

	html := strings.Replace(buf.String(), "<body>", "<body>\n"+header.String(), 1)
	html = strings.Replace(html, "</head>", pageCSS+"</head>", 1)
	_, err := io.WriteString(w, html)
	return err
}

func titled(title string, empty bool) opts.Title {
	t := opts.Title{Title: title}
	if empty {
		t.Subtitle = NoDataTitle
	}
	return t
}

func initOpts(id string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		ChartID: id,
		Width:   chartWidth,
		Height:  chartHeight,
	})
}

// DailyLine plots total rentals per day
func DailyLine(points []aggregate.DailyPoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts("daily"),
		charts.WithTitleOpts(titled("Daily rentals", len(points) == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rides"}),
	)

	x := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = p.Date.Format(time.DateOnly)
		data[i] = opts.LineData{Value: p.Total}
	}
	line.SetXAxis(x).AddSeries("Total", data)
	return line
}

// HourlyLine plots the mean hourly total per hour of day
func HourlyLine(points []aggregate.HourlyPoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts("hourly"),
		charts.WithTitleOpts(titled("Average rentals by hour", len(points) == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rides"}),
	)

	x := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = locale.FormatHour(p.Hour)
		data[i] = opts.LineData{Value: round(p.Mean)}
	}
	line.SetXAxis(x).
		AddSeries("Mean", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

// SplitPie shows casual versus registered rentals
func SplitPie(s aggregate.Split) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts("split"),
		charts.WithTitleOpts(titled("Casual vs registered", s.Total() == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Formatter: "{b}: {c} ({d}%)"}),
	)

	var data []opts.PieData
	if s.Total() > 0 {
		data = []opts.PieData{
			{Name: "Casual", Value: s.Casual},
			{Name: "Registered", Value: s.Registered},
		}
	}
	pie.AddSeries("Riders", data, charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
	return pie
}

// MonthlyLine plots the monthly totals of the latest year
func MonthlyLine(points []aggregate.MonthlyPoint) *charts.Line {
	line := charts.NewLine()
	title := "Monthly rentals"
	if len(points) > 0 {
		title = fmt.Sprintf("Monthly rentals %d", points[0].Month.Year())
	}
	line.SetGlobalOptions(
		initOpts("monthly"),
		charts.WithTitleOpts(titled(title, len(points) == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	x := make([]string, len(points))
	totals := make([]opts.LineData, len(points))
	records := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = p.Label
		totals[i] = opts.LineData{Value: p.Total}
		records[i] = opts.LineData{Value: p.DistinctRecords}
	}
	line.SetXAxis(x).
		AddSeries("Total rides", totals).
		AddSeries("Records", records)
	return line
}

// SeasonalBar shows the mean hourly total per season
func SeasonalBar(stats []aggregate.SeasonStat) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts("seasonal"),
		charts.WithTitleOpts(titled("Average rentals by season", len(stats) == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	x := make([]string, len(stats))
	data := make([]opts.BarData, len(stats))
	for i, s := range stats {
		x[i] = s.Name
		data[i] = opts.BarData{Value: round(s.Mean)}
	}
	bar.SetXAxis(x).AddSeries("Mean", data)
	return bar
}

// WeatherScatter plots hourly totals against one weather reading
func WeatherScatter(id, name string, points []aggregate.Point) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		initOpts("weather-"+id),
		charts.WithTitleOpts(titled("Rentals vs "+strings.ToLower(name), len(points) == 0)),
		charts.WithXAxisOpts(opts.XAxis{Name: name, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rides", Type: "value"}),
	)

	data := make([]opts.ScatterData, len(points))
	for i, p := range points {
		data[i] = opts.ScatterData{Value: []interface{}{round(p.X), p.Y}, SymbolSize: 4}
	}
	scatter.AddSeries(name, data)
	return scatter
}

// PivotHeatMap shows mean rentals by weekday and hour. Unobserved cells are left out.
func PivotHeatMap(p aggregate.Pivot) *charts.HeatMap {
	hm := charts.NewHeatMap()

	hours := make([]string, len(p.Hours))
	for i, h := range p.Hours {
		hours[i] = locale.FormatHour(h)
	}

	var (
		data   []opts.HeatMapData
		maxVal float64
	)
	for row := range p.Cells {
		for col, v := range p.Cells[row] {
			if v == nil {
				continue
			}
			if *v > maxVal {
				maxVal = *v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{col, row, round(*v)}})
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	hm.SetGlobalOptions(
		initOpts("pivot"),
		charts.WithTitleOpts(titled("Average rentals by weekday and hour", len(data) == 0)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: hours, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxVal),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"},
			},
		}),
	)
	hm.SetXAxis(p.Days).AddSeries("Mean", data)
	return hm
}

func round(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
