package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/exporter"
	"bikepulse/internal/filter"
	"bikepulse/internal/infrastructure"
	custommw "bikepulse/internal/middleware"
	"bikepulse/internal/services"
)

// DashboardHandler serves the dashboard JSON API and file exports
type DashboardHandler struct {
	service      DashboardService
	validator    *custommw.Validator
	metrics      *infrastructure.BusinessMetrics
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler. metrics may be nil.
func NewDashboardHandler(service DashboardService, validator *custommw.Validator, metrics *infrastructure.BusinessMetrics, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/bounds", h.GetBounds)
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/summary", h.view(func(s *services.Snapshot) interface{} { return s.Summary }))
		r.Get("/trends/daily", h.view(func(s *services.Snapshot) interface{} { return s.Daily }))
		r.Get("/trends/hourly", h.view(func(s *services.Snapshot) interface{} { return s.Hourly }))
		r.Get("/split", h.view(func(s *services.Snapshot) interface{} { return s.Split }))
		r.Get("/monthly", h.view(func(s *services.Snapshot) interface{} { return s.Monthly }))
		r.Get("/seasonal", h.view(func(s *services.Snapshot) interface{} { return s.Seasonal }))
		r.Get("/pivot", h.view(func(s *services.Snapshot) interface{} { return s.Pivot }))
		r.Get("/weather", h.GetWeather)
	})

	r.Get("/export/{format}", h.Export)
	return r
}

// GetBounds handles GET /api/dashboard/bounds
func (h *DashboardHandler) GetBounds(w http.ResponseWriter, r *http.Request) {
	bounds, err := h.service.Bounds(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"min_date": bounds.Min.Format(custommw.DateLayout),
			"max_date": bounds.Max.Format(custommw.DateLayout),
			"min_hour": filter.MinHour,
			"max_hour": filter.MaxHour,
		},
	})
}

// GetSnapshot handles GET /api/dashboard/snapshot
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snap,
	})
}

// view serves one part of the snapshot along with the applied params
func (h *DashboardHandler) view(pick func(*services.Snapshot) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		resp := map[string]interface{}{
			"status": "success",
			"params": snap.Params,
			"empty":  snap.Empty,
			"data":   pick(snap),
		}
		if len(snap.Warnings) > 0 {
			resp["warnings"] = snap.Warnings
		}
		render.JSON(w, r, resp)
	}
}

// GetWeather handles GET /api/dashboard/weather. The scatter always covers
// the whole table.
func (h *DashboardHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	scatter, err := h.service.Weather(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   scatter,
	})
}

// Export handles GET /api/dashboard/export/{format}
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, err := exporter.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			apierrors.ErrUnsupportedFormat.StatusCode,
			apierrors.ErrUnsupportedFormat.ErrorCode,
			apierrors.ErrUnsupportedFormat.Message,
			apierrors.ValidationError{Field: "format", Message: err.Error()},
		))
		return
	}

	params, err := h.validator.ParseFilterQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	snap, rows, err := h.service.Export(ctx, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	bundle := exporter.Bundle{Snapshot: snap, Rows: rows, Locale: h.service.Locale()}
	var buf bytes.Buffer
	err = exporter.Write(&buf, format, bundle)
	h.metrics.RecordExport(ctx, string(format), err)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ExportError(string(format), err))
		return
	}

	h.logger.InfoContext(ctx, "export served",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("format", string(format)),
		slog.Int("rows", len(rows)),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s.%s"`, bundle.BaseName(), format))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *DashboardHandler) snapshot(w http.ResponseWriter, r *http.Request) (*services.Snapshot, bool) {
	params, err := h.validator.ParseFilterQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	snap, err := h.service.Snapshot(r.Context(), params)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return snap, true
}

// fail maps service errors to API errors
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrDatasetNotLoaded) {
		err = apierrors.ErrDatasetUnavailable
	}
	h.errorHandler.HandleError(w, r, err)
}
