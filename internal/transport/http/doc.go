// Package http implements the HTTP handlers of the dashboard server. Handlers
// are thin: they parse and validate the filter selection, call the dashboard
// service and format the response.
//
// # Routes
//
//	GET /                              dashboard page (go-echarts)
//	GET /ws                            live dashboard session
//	GET /api/dashboard/bounds          date and hour limits
//	GET /api/dashboard/snapshot        every view for a selection
//	GET /api/dashboard/{view}          summary, trends/daily, trends/hourly,
//	                                   split, monthly, seasonal, pivot
//	GET /api/dashboard/weather         weather scatter of the whole table
//	GET /api/dashboard/export/{format} csv, xlsx or png download
//	GET /api/health[/ready|/live]      health checks
//	GET /api/version                   build information
//
// Every filtered endpoint accepts start and end (YYYY-MM-DD) and hour_min and
// hour_max (0-23) query parameters. Missing values select the full range.
//
// # Error Handling
//
// Errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/filter/invalid-range",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "start must not be after end",
//	    "instance": "/api/dashboard/snapshot",
//	    "error_code": "INVALID_RANGE",
//	    "trace_id": "..."
//	}
package http
