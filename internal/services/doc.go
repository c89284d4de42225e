// Package services implements the business logic layer of the dashboard.
// It sits between the HTTP and WebSocket handlers and the analytics
// packages (dataset, filter, aggregate, derive).
//
// # Services
//
//	- DashboardService: clamps a filter, applies it to the current table and
//	  computes every dashboard view as one Snapshot
//	- HealthService: health, readiness, liveness and version reporting
//
// # Concurrency
//
// The base table is immutable and read through dataset.Store, so snapshots
// can be computed from any goroutine. Identical concurrent snapshot
// requests share one computation, and the independent views of a snapshot
// are computed in parallel. A cancelled context abandons the snapshot and
// returns ctx.Err() without a partial result.
//
// # Logging
//
// Services receive a *slog.Logger through their constructor and tag it with
// a component attribute.
package services
