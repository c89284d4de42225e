// Package charts renders dashboard snapshots.
//
// The interactive page is built with go-echarts: one components.Page with
// the summary cards and filter form injected above the charts. Static PNG
// renderings of the daily and hourly trends use go-chart and back the PNG
// export.
//
// Views with no data still render, titled with NoDataTitle, so an empty
// filter never breaks the page.
package charts
