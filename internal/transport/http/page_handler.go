package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"bikepulse/internal/charts"
	apierrors "bikepulse/internal/errors"
	custommw "bikepulse/internal/middleware"
	"bikepulse/internal/services"
)

// PageHandler renders the interactive dashboard page
type PageHandler struct {
	service      DashboardService
	validator    *custommw.Validator
	title        string
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPageHandler creates a page handler
func NewPageHandler(service DashboardService, validator *custommw.Validator, title string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PageHandler {
	return &PageHandler{
		service:      service,
		validator:    validator,
		title:        title,
		logger:       logger.With(slog.String("handler", "page")),
		errorHandler: errorHandler,
	}
}

// ServeHTTP handles GET /. The filter form submits back to the same URL.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := h.validator.ParseFilterForm(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	bounds, err := h.service.Bounds(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.service.Snapshot(ctx, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	weather, err := h.service.Weather(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := charts.RenderPage(&buf, charts.PageData{
		Title:    h.title,
		Snapshot: snap,
		Weather:  weather,
		Bounds:   bounds,
	}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrDatasetNotLoaded) {
		err = apierrors.ErrDatasetUnavailable
	}
	h.errorHandler.HandleError(w, r, err)
}
