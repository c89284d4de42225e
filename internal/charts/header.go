package charts

import (
	"html/template"
	"time"

	"bikepulse/internal/services"
)

type card struct {
	Label string
	Value string
}

type header struct {
	Title    string
	Cards    []card
	Warnings []string
	Start    string
	End      string
	Min      string
	Max      string
	HourMin  int
	HourMax  int
	Hours    []int
}

func newHeader(d PageData) header {
	s := d.Snapshot
	h := header{
		Title: d.Title,
		Cards: []card{
			{Label: "Total rides", Value: s.Summary.TotalRidesText},
			{Label: "Average temperature", Value: s.Summary.AvgTempText},
			{Label: "Busiest hour", Value: s.Summary.BusiestHourText},
		},
		Warnings: s.Warnings,
		Start:    formatDate(s.Params.DateStart),
		End:      formatDate(s.Params.DateEnd),
		Min:      formatDate(d.Bounds.Min),
		Max:      formatDate(d.Bounds.Max),
		HourMin:  s.Params.HourMin,
		HourMax:  s.Params.HourMax,
	}
	for i := 0; i < 24; i++ {
		h.Hours = append(h.Hours, i)
	}
	if h.Title == "" {
		h.Title = "Bike sharing dashboard"
	}
	if s.Empty && len(h.Warnings) == 0 {
		h.Warnings = []string{services.EmptyResultWarning}
	}
	return h
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

const pageCSS = `<style>
.bp-header{font-family:sans-serif;padding:12px 24px;background:#f5f7fa;border-bottom:1px solid #dde3ea}
.bp-cards{display:flex;gap:16px;margin:12px 0}
.bp-card{background:#fff;border:1px solid #dde3ea;border-radius:6px;padding:12px 20px;min-width:180px}
.bp-card .label{color:#6b7785;font-size:13px}
.bp-card .value{font-size:26px;font-weight:600}
.bp-warn{color:#9a6700;background:#fff8c5;padding:8px 12px;border-radius:4px}
.bp-form label{margin-right:12px}
</style>
`

var headerTemplate = template.Must(template.New("header").Parse(`<div class="bp-header">
  <h2>{{.Title}}</h2>
  <form class="bp-form" method="get" action="/">
    <label>From <input type="date" name="start" value="{{.Start}}" min="{{.Min}}" max="{{.Max}}"></label>
    <label>To <input type="date" name="end" value="{{.End}}" min="{{.Min}}" max="{{.Max}}"></label>
    <label>Hours
      <select name="hour_min">{{range .Hours}}<option value="{{.}}"{{if eq . $.HourMin}} selected{{end}}>{{.}}</option>{{end}}</select>
      to
      <select name="hour_max">{{range .Hours}}<option value="{{.}}"{{if eq . $.HourMax}} selected{{end}}>{{.}}</option>{{end}}</select>
    </label>
    <button type="submit">Apply</button>
  </form>
  <div class="bp-cards">
  {{range .Cards}}<div class="bp-card"><div class="label">{{.Label}}</div><div class="value">{{.Value}}</div></div>
  {{end}}</div>
  {{range .Warnings}}<div class="bp-warn">{{.}}</div>
  {{end}}
</div>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "dataset:reloaded") { location.reload(); }
  };
})();
</script>
`))
