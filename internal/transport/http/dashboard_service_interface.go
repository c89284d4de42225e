package http

import (
	"context"

	"bikepulse/internal/aggregate"
	"bikepulse/internal/dataset"
	"bikepulse/internal/filter"
	"bikepulse/internal/locale"
	"bikepulse/internal/services"
)

// DashboardService is what the dashboard handlers need from the service layer
type DashboardService interface {
	Locale() *locale.Locale
	Bounds(ctx context.Context) (dataset.Bounds, error)
	Snapshot(ctx context.Context, p filter.Params) (*services.Snapshot, error)
	// Export returns a snapshot and its rows, both from one table
	Export(ctx context.Context, p filter.Params) (*services.Snapshot, []dataset.Record, error)
	Weather(ctx context.Context) (aggregate.Scatter, error)
}

var _ DashboardService = (*services.DashboardService)(nil)
